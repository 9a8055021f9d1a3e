package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriftReport records a divergence between an item's cached quantity and its ledger sum.
type DriftReport struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ItemID         uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`
	CachedQuantity int64     `gorm:"column:cached_quantity;not null"`
	LedgerQuantity int64     `gorm:"column:ledger_quantity;not null"`
	Repaired       bool      `gorm:"column:repaired;not null;default:false"`
	DetectedAt     time.Time `gorm:"column:detected_at;not null"`
}

func (DriftReport) TableName() string { return "drift_reports" }

func (d *DriftReport) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
