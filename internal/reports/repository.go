package reports

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// ItemStats aggregates the item table.
type ItemStats struct {
	TotalItems    int64
	TotalStock    int64
	LowStockItems int64
}

// TransactionCounts counts transactions by type within a window.
type TransactionCounts struct {
	Total int64
	In    int64
	Out   int64
}

// Repository runs read-only aggregate queries for reports.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListItems(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) ItemStats(ctx context.Context, lowStockThreshold int64) (ItemStats, error) {
	var stats ItemStats
	err := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Select(`COUNT(*) AS total_items,
			CAST(COALESCE(SUM(quantity), 0) AS BIGINT) AS total_stock,
			COALESCE(SUM(CASE WHEN quantity < ? THEN 1 ELSE 0 END), 0) AS low_stock_items`, lowStockThreshold).
		Scan(&stats).Error
	return stats, err
}

// CountTransactions counts rows in [from, to). Zero bounds are open.
func (r *Repository) CountTransactions(ctx context.Context, from, to time.Time) (TransactionCounts, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if !from.IsZero() {
		query = query.Where(`"timestamp" >= ?`, from)
	}
	if !to.IsZero() {
		query = query.Where(`"timestamp" < ?`, to)
	}

	var rows []struct {
		TransactionType enums.TransactionType
		Count           int64
	}
	if err := query.
		Select("transaction_type, COUNT(*) AS count").
		Group("transaction_type").
		Scan(&rows).Error; err != nil {
		return TransactionCounts{}, err
	}

	var counts TransactionCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch row.TransactionType {
		case enums.TransactionTypeIn:
			counts.In = row.Count
		case enums.TransactionTypeOut:
			counts.Out = row.Count
		}
	}
	return counts, nil
}
