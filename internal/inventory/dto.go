package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
)

// ItemDTO is the item payload returned to clients.
type ItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ItemName  string          `json:"item_name"`
	Category  string          `json:"category"`
	Supplier  string          `json:"supplier"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewItemDTO(item *models.Item) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:        item.ID,
		ItemName:  item.Name,
		Category:  item.Category,
		Supplier:  item.Supplier,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func newItemDTOs(items []models.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for i := range items {
		out = append(out, *NewItemDTO(&items[i]))
	}
	return out
}
