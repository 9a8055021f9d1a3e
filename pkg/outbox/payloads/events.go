package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// StockMovementRecordedEvent is emitted for every applied ledger transaction.
type StockMovementRecordedEvent struct {
	TransactionID   uuid.UUID               `json:"transaction_id"`
	ItemID          uuid.UUID               `json:"item_id"`
	ItemName        string                  `json:"item_name"`
	Type            enums.TransactionType   `json:"transaction_type"`
	Source          enums.TransactionSource `json:"source"`
	Quantity        int64                   `json:"quantity"`
	ResultingStock  int64                   `json:"resulting_quantity"`
	PerformedBy     string                  `json:"performed_by,omitempty"`
	TransactionTime time.Time               `json:"timestamp"`
}

// ItemCreatedEvent announces a new SKU.
type ItemCreatedEvent struct {
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
	Category string    `json:"category"`
}

// ItemDeletedEvent announces the removal of a SKU without history.
type ItemDeletedEvent struct {
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
}

// LedgerDriftDetectedEvent reports a cached quantity that disagreed with the ledger.
type LedgerDriftDetectedEvent struct {
	ItemID         uuid.UUID `json:"item_id"`
	CachedQuantity int64     `json:"cached_quantity"`
	LedgerQuantity int64     `json:"ledger_quantity"`
	Repaired       bool      `json:"repaired"`
}
