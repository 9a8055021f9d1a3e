package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/cbwis-backend/pkg/db"
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/metrics"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox/payloads"
)

// Service records stock movements and keeps item quantities consistent with them.
type Service interface {
	RecordMovement(ctx context.Context, input RecordMovementInput) (*models.Transaction, error)
	// AppendTx appends a transaction inside a caller-owned database transaction.
	AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Transaction, error)
	AdjustQuantity(ctx context.Context, input AdjustInput) (*models.Transaction, error)
	AdjustQuantityTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter Filter) ([]models.Transaction, error)
	Summarize(ctx context.Context, filter Filter) (Summary, error)
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	CountByItemTx(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (int64, error)
	VerifyItem(ctx context.Context, itemID uuid.UUID) (Drift, error)
	DetectDrift(ctx context.Context) (*ReconcileResult, error)
	Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	DB         txRunner
	Repository *Repository
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Now        func() time.Time
}

type service struct {
	db      txRunner
	repo    *Repository
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// RecordMovementInput is a stock-in or stock-out request.
type RecordMovementInput struct {
	ItemID      uuid.UUID
	Quantity    int64
	Type        enums.TransactionType
	PerformedBy string
	Actor       *outbox.ActorRef
}

// AppendInput is the full description of a transaction to append.
type AppendInput struct {
	ItemID      uuid.UUID
	Quantity    int64
	Type        enums.TransactionType
	Source      enums.TransactionSource
	PerformedBy string
	Note        string
	Actor       *outbox.ActorRef
}

// AdjustInput sets an item's quantity by writing the reconciling transaction.
type AdjustInput struct {
	ItemID      uuid.UUID
	NewQuantity int64
	PerformedBy string
	Note        string
	Actor       *outbox.ActorRef
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("ledger tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:      params.DB,
		repo:    params.Repository,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (in AppendInput) validate() error {
	if in.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if in.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if !in.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", in.Type)
	}
	if !in.Source.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction source %q", in.Source)
	}
	return nil
}

func (s *service) RecordMovement(ctx context.Context, input RecordMovementInput) (*models.Transaction, error) {
	req := AppendInput{
		ItemID:      input.ItemID,
		Quantity:    input.Quantity,
		Type:        input.Type,
		Source:      enums.TransactionSourceMovement,
		PerformedBy: input.PerformedBy,
		Actor:       input.Actor,
	}

	var txn *models.Transaction
	err := req.validate()
	if err == nil {
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			created, appendErr := s.AppendTx(ctx, tx, req)
			if appendErr != nil {
				return appendErr
			}
			txn = created
			return nil
		})
	}
	s.observe(string(input.Type), input.Quantity, err)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"item_id":          txn.ItemID.String(),
		"transaction_id":   txn.ID.String(),
		"transaction_type": txn.Type,
		"quantity":         txn.Quantity,
	})
	s.logg.Info(logCtx, "stock movement recorded")
	return txn, nil
}

func (s *service) AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Transaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	item, err := repo.LockItem(ctx, input.ItemID)
	if err != nil {
		return nil, itemLookupError(err)
	}
	return s.appendLocked(ctx, tx, repo, item, input)
}

// appendLocked expects item to be held under a row lock by tx.
func (s *service) appendLocked(ctx context.Context, tx *gorm.DB, repo *Repository, item *models.Item, input AppendInput) (*models.Transaction, error) {
	now := s.now().UTC()
	txn := &models.Transaction{
		ItemID:      item.ID,
		ItemName:    item.Name,
		Category:    item.Category,
		Type:        input.Type,
		Quantity:    input.Quantity,
		PerformedBy: strings.TrimSpace(input.PerformedBy),
		Source:      input.Source,
		Timestamp:   now,
	}
	if note := strings.TrimSpace(input.Note); note != "" {
		txn.Note = &note
	}

	delta := txn.Delta()
	if delta > 0 && item.Quantity > math.MaxInt64-delta {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity %d would overflow stock of %d", input.Quantity, item.Quantity)
	}
	if item.Quantity+delta < 0 {
		return nil, pkgerrors.InsufficientStock(item.ID.String(), item.Quantity, input.Quantity)
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		if dbpkg.IsForeignKeyViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert transaction")
	}

	applied, err := repo.ApplyDelta(ctx, item.ID, delta, now)
	if err != nil {
		if dbpkg.IsCheckViolation(err, "") {
			return nil, pkgerrors.InsufficientStock(item.ID.String(), item.Quantity, input.Quantity)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: apply quantity delta")
	}
	if !applied {
		return nil, pkgerrors.InsufficientStock(item.ID.String(), item.Quantity, input.Quantity)
	}
	item.Quantity += delta

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockMovementRecorded,
		AggregateType: enums.AggregateItem,
		AggregateID:   item.ID,
		Actor:         input.Actor,
		OccurredAt:    now,
		Data: payloads.StockMovementRecordedEvent{
			TransactionID:   txn.ID,
			ItemID:          item.ID,
			ItemName:        item.Name,
			Type:            txn.Type,
			Source:          txn.Source,
			Quantity:        txn.Quantity,
			ResultingStock:  item.Quantity,
			PerformedBy:     txn.PerformedBy,
			TransactionTime: now,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: queue stock movement")
	}
	return txn, nil
}

func (s *service) AdjustQuantity(ctx context.Context, input AdjustInput) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.AdjustQuantityTx(ctx, tx, input)
		if err != nil {
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if txn != nil {
		s.observe(string(txn.Type), txn.Quantity, nil)
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"item_id":          txn.ItemID.String(),
			"transaction_id":   txn.ID.String(),
			"transaction_type": txn.Type,
			"quantity":         txn.Quantity,
		})
		s.logg.Info(logCtx, "quantity adjustment recorded")
	}
	return txn, nil
}

// AdjustQuantityTx returns a nil transaction when the quantity is already correct.
func (s *service) AdjustQuantityTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.Transaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.NewQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	repo := s.repo.WithTx(tx)
	item, err := repo.LockItem(ctx, input.ItemID)
	if err != nil {
		return nil, itemLookupError(err)
	}

	delta := input.NewQuantity - item.Quantity
	if delta == 0 {
		return nil, nil
	}
	txnType := enums.TransactionTypeIn
	if delta < 0 {
		txnType = enums.TransactionTypeOut
		delta = -delta
	}
	note := input.Note
	if strings.TrimSpace(note) == "" {
		note = fmt.Sprintf("quantity adjusted from %d to %d", item.Quantity, input.NewQuantity)
	}
	return s.appendLocked(ctx, tx, repo, item, AppendInput{
		ItemID:      item.ID,
		Quantity:    delta,
		Type:        txnType,
		Source:      enums.TransactionSourceAdjustment,
		PerformedBy: input.PerformedBy,
		Note:        note,
		Actor:       input.Actor,
	})
}

func (s *service) ListTransactions(ctx context.Context, filter Filter) ([]models.Transaction, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	txns, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list transactions")
	}
	return txns, nil
}

func (s *service) Summarize(ctx context.Context, filter Filter) (Summary, error) {
	txns, err := s.ListTransactions(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return BuildSummary(txns), nil
}

func (s *service) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	count, err := s.repo.CountByItem(ctx, itemID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count transactions")
	}
	return count, nil
}

func (s *service) CountByItemTx(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (int64, error) {
	count, err := s.repo.WithTx(tx).CountByItem(ctx, itemID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count transactions")
	}
	return count, nil
}

func (s *service) observe(txnType string, quantity int64, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveMovement(txnType, metrics.ResultApplied, quantity)
	case isRejection(err):
		s.metrics.ObserveMovement(txnType, metrics.ResultRejected, 0)
	default:
		s.metrics.ObserveMovement(txnType, metrics.ResultFailed, 0)
	}
}

func isRejection(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeInsufficientStock:
		return true
	default:
		return false
	}
}

func itemLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load item")
}
