package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// TransactionDTO is the transaction payload returned to clients.
type TransactionDTO struct {
	ID              uuid.UUID               `json:"id"`
	ItemID          uuid.UUID               `json:"item_id"`
	ItemName        string                  `json:"item_name"`
	Category        string                  `json:"category"`
	TransactionType enums.TransactionType   `json:"transaction_type"`
	Quantity        int64                   `json:"quantity"`
	PerformedBy     string                  `json:"performed_by"`
	Source          enums.TransactionSource `json:"source"`
	Note            *string                 `json:"note,omitempty"`
	Timestamp       time.Time               `json:"timestamp"`
}

func NewTransactionDTO(txn *models.Transaction) *TransactionDTO {
	if txn == nil {
		return nil
	}
	return &TransactionDTO{
		ID:              txn.ID,
		ItemID:          txn.ItemID,
		ItemName:        txn.ItemName,
		Category:        txn.Category,
		TransactionType: txn.Type,
		Quantity:        txn.Quantity,
		PerformedBy:     txn.PerformedBy,
		Source:          txn.Source,
		Note:            txn.Note,
		Timestamp:       txn.Timestamp,
	}
}

func NewTransactionDTOs(txns []models.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txns))
	for i := range txns {
		out = append(out, *NewTransactionDTO(&txns[i]))
	}
	return out
}
