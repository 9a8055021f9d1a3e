package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox/payloads"
)

// Drift compares an item's cached quantity with the net of its transactions.
type Drift struct {
	ItemID         uuid.UUID `json:"item_id"`
	CachedQuantity int64     `json:"cached_quantity"`
	LedgerQuantity int64     `json:"ledger_quantity"`
}

func (d Drift) Drifted() bool {
	return d.CachedQuantity != d.LedgerQuantity
}

type ReconcileInput struct {
	Repair bool
}

type ReconcileResult struct {
	Scanned  int     `json:"scanned"`
	Drifted  []Drift `json:"drifted"`
	Repaired int     `json:"repaired"`
	// Unrepairable lists drift whose ledger sum is negative; those items are reported only.
	Unrepairable []Drift `json:"unrepairable,omitempty"`
}

func (s *service) VerifyItem(ctx context.Context, itemID uuid.UUID) (Drift, error) {
	balances, err := s.repo.Balances(ctx, &itemID)
	if err != nil {
		return Drift{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: compute item balance")
	}
	if len(balances) == 0 {
		return Drift{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return driftOf(balances[0]), nil
}

// DetectDrift lists drifted items from one balance scan. It takes no locks and
// writes nothing, so a movement racing the scan can show up as transient drift.
func (s *service) DetectDrift(ctx context.Context) (*ReconcileResult, error) {
	balances, err := s.repo.Balances(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: compute balances")
	}
	result := &ReconcileResult{Scanned: len(balances), Drifted: []Drift{}}
	for _, balance := range balances {
		if drift := driftOf(balance); drift.Drifted() {
			result.Drifted = append(result.Drifted, drift)
		}
	}
	return result, nil
}

// Reconcile scans every item for drift, records a report row per divergence and,
// when asked, rewrites the cached quantity from the ledger. Per-item failures are
// collected so one bad row does not stop the scan.
func (s *service) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	balances, err := s.repo.Balances(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: compute balances")
	}

	result := &ReconcileResult{Scanned: len(balances), Drifted: []Drift{}}
	var errs error
	for _, balance := range balances {
		candidate := driftOf(balance)
		if !candidate.Drifted() {
			continue
		}
		confirmed, repaired, err := s.reconcileItem(ctx, candidate.ItemID, input.Repair)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile item %s: %w", candidate.ItemID, err))
			continue
		}
		if confirmed == nil {
			continue
		}
		result.Drifted = append(result.Drifted, *confirmed)
		if repaired {
			result.Repaired++
		} else if input.Repair {
			result.Unrepairable = append(result.Unrepairable, *confirmed)
		}
	}

	s.metrics.ObserveReconcile(len(result.Drifted), result.Repaired)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"drifted":  len(result.Drifted),
		"repaired": result.Repaired,
		"repair":   input.Repair,
	})
	if len(result.Drifted) > 0 {
		s.logg.Warn(logCtx, "ledger drift detected")
	} else {
		s.logg.Info(logCtx, "ledger reconciled without drift")
	}

	if errs != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "reconcile incomplete")
	}
	return result, nil
}

// reconcileItem re-checks one item under its row lock so concurrent movements
// cannot produce a false positive. It returns nil drift when the item is consistent.
func (s *service) reconcileItem(ctx context.Context, itemID uuid.UUID, repair bool) (*Drift, bool, error) {
	var (
		confirmed *Drift
		repaired  bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockItem(ctx, itemID); err != nil {
			return itemLookupError(err)
		}
		balances, err := repo.Balances(ctx, &itemID)
		if err != nil {
			return err
		}
		if len(balances) == 0 {
			return nil
		}
		drift := driftOf(balances[0])
		if !drift.Drifted() {
			return nil
		}
		confirmed = &drift

		now := s.now().UTC()
		if repair && drift.LedgerQuantity >= 0 {
			if err := repo.SetQuantity(ctx, itemID, drift.LedgerQuantity, now); err != nil {
				return err
			}
			repaired = true
		}
		if err := repo.CreateDriftReport(ctx, &models.DriftReport{
			ItemID:         itemID,
			CachedQuantity: drift.CachedQuantity,
			LedgerQuantity: drift.LedgerQuantity,
			Repaired:       repaired,
			DetectedAt:     now,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerDriftDetected,
			AggregateType: enums.AggregateItem,
			AggregateID:   itemID,
			OccurredAt:    now,
			Data: payloads.LedgerDriftDetectedEvent{
				ItemID:         itemID,
				CachedQuantity: drift.CachedQuantity,
				LedgerQuantity: drift.LedgerQuantity,
				Repaired:       repaired,
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return confirmed, repaired, nil
}

func driftOf(b ItemBalance) Drift {
	return Drift{ItemID: b.ItemID, CachedQuantity: b.CachedQuantity, LedgerQuantity: b.LedgerQuantity}
}
