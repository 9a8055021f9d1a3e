package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/cbwis-backend/internal/inventory"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/redis"
)

const (
	defaultLowStockThreshold = 10
	dashboardCacheKey        = "dashboard"
)

// InventoryReport values the whole catalog.
type InventoryReport struct {
	TotalItems    int                 `json:"total_items"`
	TotalQuantity int64               `json:"total_quantity"`
	TotalValue    decimal.Decimal     `json:"total_value"`
	LowStockItems int                 `json:"low_stock_items"`
	Items         []inventory.ItemDTO `json:"items"`
}

// DashboardStats is the headline view. Today counts are transactions, not units.
type DashboardStats struct {
	TotalItems        int64 `json:"total_items"`
	TotalStock        int64 `json:"total_stock"`
	LowStockItems     int64 `json:"low_stock_items"`
	TotalTransactions int64 `json:"total_transactions"`
	TodayTransactions int64 `json:"today_transactions"`
	StockInToday      int64 `json:"stock_in_today"`
	StockOutToday     int64 `json:"stock_out_today"`
}

type Service interface {
	InventoryReport(ctx context.Context) (*InventoryReport, error)
	TransactionSummary(ctx context.Context, filter ledger.Filter) (ledger.Summary, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

type ServiceParams struct {
	Repository        *Repository
	Ledger            ledger.Service
	Cache             redis.Cache
	CacheTTL          time.Duration
	LowStockThreshold int64
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo      *Repository
	ledger    ledger.Service
	cache     redis.Cache
	cacheTTL  time.Duration
	threshold int64
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	threshold := params.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repository,
		ledger:    params.Ledger,
		cache:     params.Cache,
		cacheTTL:  params.CacheTTL,
		threshold: threshold,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) InventoryReport(ctx context.Context) (*InventoryReport, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list items")
	}

	report := &InventoryReport{
		TotalItems: len(items),
		TotalValue: decimal.Zero,
		Items:      make([]inventory.ItemDTO, 0, len(items)),
	}
	for i := range items {
		item := &items[i]
		report.TotalQuantity += item.Quantity
		report.TotalValue = report.TotalValue.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
		if item.Quantity < s.threshold {
			report.LowStockItems++
		}
		report.Items = append(report.Items, *inventory.NewItemDTO(item))
	}
	return report, nil
}

func (s *service) TransactionSummary(ctx context.Context, filter ledger.Filter) (ledger.Summary, error) {
	return s.ledger.Summarize(ctx, filter)
}

func (s *service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	key := ""
	if s.cache != nil && s.cacheTTL > 0 {
		key = s.cache.CacheKey("reports", dashboardCacheKey)
		if cached, ok := s.readCache(ctx, key); ok {
			return cached, nil
		}
	}

	stats, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if key != "" {
		s.writeCache(ctx, key, stats)
	}
	return stats, nil
}

func (s *service) computeDashboard(ctx context.Context) (*DashboardStats, error) {
	dayStart := s.now().UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var (
		items ItemStats
		all   TransactionCounts
		today TransactionCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.ItemStats(gctx, s.threshold)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.repo.CountTransactions(gctx, time.Time{}, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		today, err = s.repo.CountTransactions(gctx, dayStart, dayEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: dashboard stats")
	}

	return &DashboardStats{
		TotalItems:        items.TotalItems,
		TotalStock:        items.TotalStock,
		LowStockItems:     items.LowStockItems,
		TotalTransactions: all.Total,
		TodayTransactions: today.Total,
		StockInToday:      today.In,
		StockOutToday:     today.Out,
	}, nil
}

func (s *service) readCache(ctx context.Context, key string) (*DashboardStats, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "dashboard cache read failed: "+err.Error())
		}
		return nil, false
	}
	var stats DashboardStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "dashboard cache entry unreadable")
		return nil, false
	}
	return &stats, true
}

func (s *service) writeCache(ctx context.Context, key string, stats *DashboardStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "dashboard cache write failed: "+err.Error())
	}
}
