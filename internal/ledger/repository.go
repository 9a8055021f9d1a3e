package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// ItemBalance pairs an item's cached quantity with the net of its transactions.
type ItemBalance struct {
	ItemID         uuid.UUID
	CachedQuantity int64
	LedgerQuantity int64
}

// Repository persists transactions and the quantity projection on items.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockItem loads the item row under SELECT ... FOR UPDATE.
func (r *Repository) LockItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// ApplyDelta adds delta to the cached quantity unless the result would be negative.
// It reports false when the guard rejected the update.
func (r *Repository) ApplyDelta(ctx context.Context, itemID uuid.UUID, delta int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity + ? >= 0", itemID, delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetQuantity overwrites the cached quantity. Only reconciliation repairs use it.
func (r *Repository) SetQuantity(ctx context.Context, itemID uuid.UUID, quantity int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": now,
		}).Error
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.StartDate != nil {
		query = query.Where(`"timestamp" >= ?`, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where(`"timestamp" <= ?`, *filter.EndDate)
	}

	txns := []models.Transaction{}
	if err := query.
		Order(`"timestamp" DESC`).
		Order("id DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *Repository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

const balancesQuery = `
SELECT i.id AS item_id,
       i.quantity AS cached_quantity,
       CAST(COALESCE(SUM(CASE WHEN t.transaction_type = ? THEN t.quantity ELSE -t.quantity END), 0) AS BIGINT) AS ledger_quantity
FROM items i
LEFT JOIN transactions t ON t.item_id = i.id
`

// Balances recomputes the ledger sum for every item, or for one item when itemID is set.
func (r *Repository) Balances(ctx context.Context, itemID *uuid.UUID) ([]ItemBalance, error) {
	query := balancesQuery
	args := []any{string(enums.TransactionTypeIn)}
	if itemID != nil {
		query += "WHERE i.id = ?\n"
		args = append(args, *itemID)
	}
	query += "GROUP BY i.id, i.quantity, i.created_at\nORDER BY i.created_at ASC"

	var balances []ItemBalance
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

func (r *Repository) CreateDriftReport(ctx context.Context, report *models.DriftReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}
