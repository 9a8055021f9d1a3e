package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
)

type fakeReconciler struct {
	inputs []ledger.ReconcileInput
	result *ledger.ReconcileResult
	err    error
}

func (f *fakeReconciler) Reconcile(_ context.Context, input ledger.ReconcileInput) (*ledger.ReconcileResult, error) {
	f.inputs = append(f.inputs, input)
	return f.result, f.err
}

func TestDriftReconcileJobPassesRepairFlag(t *testing.T) {
	rec := &fakeReconciler{result: &ledger.ReconcileResult{Scanned: 3}}
	job, err := NewDriftReconcileJob(DriftReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Reconciler: rec,
		AutoRepair: true,
	})
	if err != nil {
		t.Fatalf("NewDriftReconcileJob: %v", err)
	}
	if job.Name() != "ledger-drift-reconcile" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.inputs) != 1 || !rec.inputs[0].Repair {
		t.Fatalf("expected one repair run, got %+v", rec.inputs)
	}
}

func TestDriftReconcileJobPropagatesError(t *testing.T) {
	rec := &fakeReconciler{result: &ledger.ReconcileResult{}, err: errors.New("db down")}
	job, err := NewDriftReconcileJob(DriftReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Reconciler: rec,
	})
	if err != nil {
		t.Fatalf("NewDriftReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDriftReconcileJobRepairsAgainstDatabase(t *testing.T) {
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:         client,
		Repository: ledger.NewRepository(client.DB()),
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}

	ctx := context.Background()
	item := models.Item{Name: "Drum", Category: "Chemicals", UnitPrice: decimal.NewFromInt(40)}
	if err := client.DB().Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := ledgerSvc.RecordMovement(ctx, ledger.RecordMovementInput{ItemID: item.ID, Quantity: 9, Type: enums.TransactionTypeIn}); err != nil {
		t.Fatalf("record movement: %v", err)
	}
	if err := client.DB().Model(&models.Item{}).Where("id = ?", item.ID).Update("quantity", 1).Error; err != nil {
		t.Fatalf("corrupt cache: %v", err)
	}

	job, err := NewDriftReconcileJob(DriftReconcileJobParams{Logger: logg, Reconciler: ledgerSvc, AutoRepair: true})
	if err != nil {
		t.Fatalf("NewDriftReconcileJob: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	drift, err := ledgerSvc.VerifyItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("VerifyItem: %v", err)
	}
	if drift.Drifted() || drift.CachedQuantity != 9 {
		t.Fatalf("expected repaired quantity 9, got %+v", drift)
	}
}
