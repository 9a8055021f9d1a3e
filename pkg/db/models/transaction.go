package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// Transaction is an immutable stock movement. ItemName and Category are
// snapshots taken when the row was written.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID      uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index:idx_transactions_item_timestamp,priority:1"`
	Item        *Item                   `gorm:"foreignKey:ItemID;references:ID;constraint:OnDelete:RESTRICT"`
	ItemName    string                  `gorm:"column:item_name;not null"`
	Category    string                  `gorm:"column:category;not null"`
	Type        enums.TransactionType   `gorm:"column:transaction_type;not null"`
	Quantity    int64                   `gorm:"column:quantity;not null;check:chk_transactions_quantity_positive,quantity > 0"`
	PerformedBy string                  `gorm:"column:performed_by;not null;default:''"`
	Source      enums.TransactionSource `gorm:"column:source;not null;default:'movement'"`
	Note        *string                 `gorm:"column:note"`
	Timestamp   time.Time               `gorm:"column:timestamp;not null;index:idx_transactions_item_timestamp,priority:2;index:idx_transactions_timestamp"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Delta is the signed effect of the transaction on item quantity.
func (t Transaction) Delta() int64 {
	return t.Type.Sign() * t.Quantity
}
