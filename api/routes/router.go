package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cbwis-backend/api/controllers"
	"github.com/angelmondragon/cbwis-backend/api/middleware"
	"github.com/angelmondragon/cbwis-backend/internal/inventory"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/internal/reports"
	"github.com/angelmondragon/cbwis-backend/pkg/config"
	"github.com/angelmondragon/cbwis-backend/pkg/db"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/metrics"
	"github.com/angelmondragon/cbwis-backend/pkg/redis"
)

type redisDependency interface {
	redis.Pinger
	redis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisDependency,
	inventoryService inventory.Service,
	ledgerService ledger.Service,
	reportsService reports.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.FrontendURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	requireAdmin := middleware.RequireRole(logg, enums.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.ListItems(inventoryService, logg))
			r.Get("/{itemId}", controllers.GetItem(inventoryService, logg))
			r.With(requireAdmin).Post("/", controllers.CreateItem(inventoryService, logg))
			r.With(requireAdmin).Put("/{itemId}", controllers.UpdateItem(inventoryService, logg))
			r.With(requireAdmin).Delete("/{itemId}", controllers.DeleteItem(inventoryService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(ledgerService, logg))
			r.Get("/range", controllers.TransactionsInRange(ledgerService, logg))
			r.Get("/item/{itemId}", controllers.ItemTransactions(ledgerService, logg))
			r.Post("/in", controllers.StockIn(ledgerService, logg))
			r.Post("/out", controllers.StockOut(ledgerService, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/inventory", controllers.InventoryReport(reportsService, logg))
			r.Get("/transactions", controllers.TransactionSummary(reportsService, logg))
			r.Get("/dashboard", controllers.DashboardStats(reportsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(requireAdmin)
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ledger/drift", controllers.LedgerDrift(ledgerService, logg))
		r.Post("/ledger/reconcile", controllers.LedgerReconcile(ledgerService, logg))
	})

	return r
}
