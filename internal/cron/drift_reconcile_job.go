package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, input ledger.ReconcileInput) (*ledger.ReconcileResult, error)
}

type DriftReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconciler
	AutoRepair bool
}

// NewDriftReconcileJob compares every cached item quantity with its ledger sum.
func NewDriftReconcileJob(params DriftReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("ledger reconciler required")
	}
	return &driftReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		repair:     params.AutoRepair,
	}, nil
}

type driftReconcileJob struct {
	logg       *logger.Logger
	reconciler reconciler
	repair     bool
}

func (j *driftReconcileJob) Name() string { return "ledger-drift-reconcile" }

func (j *driftReconcileJob) Run(ctx context.Context) error {
	result, err := j.reconciler.Reconcile(ctx, ledger.ReconcileInput{Repair: j.repair})
	if result != nil {
		fields := map[string]any{
			"scanned":     result.Scanned,
			"drifted":     len(result.Drifted),
			"repaired":    result.Repaired,
			"auto_repair": j.repair,
		}
		if len(result.Unrepairable) > 0 {
			fields["unrepairable"] = len(result.Unrepairable)
		}
		j.logg.Info(j.logg.WithFields(ctx, fields), "ledger drift scan finished")
	}
	if err != nil {
		return fmt.Errorf("ledger reconcile: %w", err)
	}
	return nil
}
