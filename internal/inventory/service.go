package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/cbwis-backend/pkg/db"
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox/payloads"

	"github.com/angelmondragon/cbwis-backend/internal/ledger"
)

const openingBalanceNote = "opening balance"

// Service manages the item catalog.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context) ([]ItemDTO, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	DeleteItem(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error
}

// CreateItemInput holds the payload to create an item.
type CreateItemInput struct {
	Name        string
	Category    string
	Supplier    string
	Quantity    int64
	UnitPrice   decimal.Decimal
	PerformedBy string
	Actor       *outbox.ActorRef
}

// UpdateItemInput holds optional mutation values. Nil fields are left untouched.
type UpdateItemInput struct {
	Name        *string
	Category    *string
	Supplier    *string
	Quantity    *int64
	UnitPrice   *decimal.Decimal
	PerformedBy string
	Actor       *outbox.ActorRef
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	db     txRunner
	ledger ledger.Service
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewService constructs an inventory service instance.
func NewService(repo *Repository, db txRunner, ledgerSvc ledger.Service, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, db: db, ledger: ledgerSvc, outbox: emitter, logg: logg}, nil
}

func (in CreateItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item_name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if in.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if in.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	return nil
}

// CreateItem inserts the item and, for a positive starting quantity, the opening IN transaction.
func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var created *models.Item
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item := &models.Item{
			Name:      strings.TrimSpace(input.Name),
			Category:  strings.TrimSpace(input.Category),
			Supplier:  strings.TrimSpace(input.Supplier),
			UnitPrice: input.UnitPrice.Round(2),
		}
		if err := txRepo.Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert item")
		}

		if input.Quantity > 0 {
			if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
				ItemID:      item.ID,
				Quantity:    input.Quantity,
				Type:        enums.TransactionTypeIn,
				Source:      enums.TransactionSourceAdjustment,
				PerformedBy: input.PerformedBy,
				Note:        openingBalanceNote,
				Actor:       input.Actor,
			}); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   item.ID,
			Actor:         input.Actor,
			Data: payloads.ItemCreatedEvent{
				ItemID:   item.ID,
				ItemName: item.Name,
				Category: item.Category,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: queue item created")
		}

		reloaded, err := txRepo.FindByID(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload item")
		}
		created = reloaded
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "create item")
	}

	logCtx := s.logg.WithItemID(ctx, created.ID.String())
	s.logg.Info(logCtx, "item created")
	return NewItemDTO(created), nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return NewItemDTO(item), nil
}

func (s *service) ListItems(ctx context.Context) ([]ItemDTO, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list items")
	}
	return newItemDTOs(items), nil
}

// UpdateItem applies the supplied fields. A new quantity is written as an adjustment transaction.
func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var updated *models.Item
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindForUpdate(ctx, id); err != nil {
			return lookupError(err)
		}

		if err := txRepo.UpdateFields(ctx, id, catalogFields(input)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update item")
		}

		if input.Quantity != nil {
			if _, err := s.ledger.AdjustQuantityTx(ctx, tx, ledger.AdjustInput{
				ItemID:      id,
				NewQuantity: *input.Quantity,
				PerformedBy: input.PerformedBy,
				Actor:       input.Actor,
			}); err != nil {
				return err
			}
		}

		reloaded, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload item")
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "update item")
	}

	s.logg.Info(s.logg.WithItemID(ctx, id.String()), "item updated")
	return NewItemDTO(updated), nil
}

// catalogFields keeps only supplied, non-empty name and category values.
func catalogFields(input UpdateItemInput) map[string]any {
	fields := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			fields["item_name"] = name
		}
	}
	if input.Category != nil {
		if category := strings.TrimSpace(*input.Category); category != "" {
			fields["category"] = category
		}
	}
	if input.Supplier != nil {
		fields["supplier"] = strings.TrimSpace(*input.Supplier)
	}
	if input.UnitPrice != nil {
		fields["unit_price"] = input.UnitPrice.Round(2)
	}
	return fields
}

// DeleteItem removes an item that has no transaction history.
func (s *service) DeleteItem(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}

		count, err := s.ledger.CountByItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "item has %d transactions and cannot be deleted", count).
				WithDetails(map[string]any{"transaction_count": count})
		}

		if _, err := txRepo.Delete(ctx, id); err != nil {
			if dbpkg.IsForeignKeyViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "item has transactions and cannot be deleted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete item")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemDeleted,
			AggregateType: enums.AggregateItem,
			AggregateID:   id,
			Actor:         actor,
			Data: payloads.ItemDeletedEvent{
				ItemID:   id,
				ItemName: item.Name,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: queue item deleted")
		}
		return nil
	})
	if err != nil {
		return asServiceError(err, "delete item")
	}

	s.logg.Info(s.logg.WithItemID(ctx, id.String()), "item deleted")
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load item")
}

func asServiceError(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
