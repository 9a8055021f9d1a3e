package inventory

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/db"
	"github.com/angelmondragon/cbwis-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
)

type harness struct {
	client *db.Client
	ledger ledger.Service
	svc    Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:         client,
		Repository: ledger.NewRepository(client.DB()),
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)

	svc, err := NewService(NewRepository(client.DB()), client, ledgerSvc, emitter, logg)
	require.NoError(t, err)
	return &harness{client: client, ledger: ledgerSvc, svc: svc}
}

func (h *harness) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func (h *harness) requireConsistent(t *testing.T, id uuid.UUID) {
	t.Helper()
	drift, err := h.ledger.VerifyItem(context.Background(), id)
	require.NoError(t, err)
	require.False(t, drift.Drifted(), "cached %d ledger %d", drift.CachedQuantity, drift.LedgerQuantity)
}

func TestCreateItemDefaults(t *testing.T) {
	h := newHarness(t)
	item, err := h.svc.CreateItem(context.Background(), CreateItemInput{Name: "  Steel Plate ", Category: "Metal"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, "Steel Plate", item.ItemName)
	assert.Equal(t, "", item.Supplier)
	assert.Equal(t, int64(0), item.Quantity)
	assert.True(t, item.UnitPrice.IsZero())

	count, err := h.ledger.CountByItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "no opening transaction for a zero quantity")
	assert.Equal(t, int64(1), h.eventCount(t, enums.EventItemCreated))
	h.requireConsistent(t, item.ID)
}

func TestCreateItemWithOpeningBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item, err := h.svc.CreateItem(ctx, CreateItemInput{
		Name:        "Copper Wire",
		Category:    "Electrical",
		Supplier:    "Wirex",
		Quantity:    40,
		UnitPrice:   decimal.RequireFromString("3.455"),
		PerformedBy: "admin@cbwis.test",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), item.Quantity)
	assert.True(t, decimal.RequireFromString("3.46").Equal(item.UnitPrice))

	txns, err := h.ledger.ListTransactions(ctx, ledger.Filter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.TransactionTypeIn, txns[0].Type)
	assert.Equal(t, enums.TransactionSourceAdjustment, txns[0].Source)
	assert.Equal(t, int64(40), txns[0].Quantity)
	require.NotNil(t, txns[0].Note)
	assert.Equal(t, openingBalanceNote, *txns[0].Note)
	assert.Equal(t, "admin@cbwis.test", txns[0].PerformedBy)
	h.requireConsistent(t, item.ID)
}

func TestCreateItemValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]CreateItemInput{
		"missing name":   {Category: "Metal"},
		"blank category": {Name: "Plate", Category: "   "},
		"negative qty":   {Name: "Plate", Category: "Metal", Quantity: -1},
		"negative price": {Name: "Plate", Category: "Metal", UnitPrice: decimal.NewFromInt(-2)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateItem(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}

	items, err := h.svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetAndListItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.GetItem(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	names := []string{"Alpha", "Bravo", "Charlie"}
	for _, name := range names {
		_, err := h.svc.CreateItem(ctx, CreateItemInput{Name: name, Category: "Misc"})
		require.NoError(t, err)
	}

	items, err := h.svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, len(names))
	for i, name := range names {
		assert.Equal(t, name, items[i].ItemName)
	}

	got, err := h.svc.GetItem(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Bravo", got.ItemName)
}

func TestUpdateItemPartial(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item, err := h.svc.CreateItem(ctx, CreateItemInput{Name: "Bolt", Category: "Fasteners", Supplier: "Acme", Quantity: 10})
	require.NoError(t, err)

	empty := ""
	supplier := "Globex"
	price := decimal.RequireFromString("0.75")
	updated, err := h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{Name: &empty, Supplier: &supplier, UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "Bolt", updated.ItemName, "empty name is ignored")
	assert.Equal(t, "Fasteners", updated.Category)
	assert.Equal(t, "Globex", updated.Supplier)
	assert.True(t, price.Equal(updated.UnitPrice))
	assert.Equal(t, int64(10), updated.Quantity)

	_, err = h.svc.UpdateItem(ctx, uuid.New(), UpdateItemInput{Supplier: &supplier})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	negative := decimal.NewFromInt(-1)
	_, err = h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{UnitPrice: &negative})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemQuantityWritesAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item, err := h.svc.CreateItem(ctx, CreateItemInput{Name: "Hinge", Category: "Hardware", Quantity: 12})
	require.NoError(t, err)

	rename := "Hinge XL"
	quantity := int64(4)
	updated, err := h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{Name: &rename, Quantity: &quantity, PerformedBy: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated.Quantity)
	assert.Equal(t, "Hinge XL", updated.ItemName)

	txns, err := h.ledger.ListTransactions(ctx, ledger.Filter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	var adjustment *models.Transaction
	for i := range txns {
		if txns[i].Type == enums.TransactionTypeOut {
			adjustment = &txns[i]
		}
	}
	require.NotNil(t, adjustment)
	assert.Equal(t, int64(8), adjustment.Quantity)
	assert.Equal(t, enums.TransactionSourceAdjustment, adjustment.Source)
	assert.Equal(t, "Hinge XL", adjustment.ItemName)
	h.requireConsistent(t, item.ID)

	before := len(txns)
	_, err = h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{Quantity: &quantity})
	require.NoError(t, err)
	count, err := h.ledger.CountByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(before), count, "unchanged quantity writes nothing")

	negative := int64(-5)
	_, err = h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{Quantity: &negative})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDeleteItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fresh, err := h.svc.CreateItem(ctx, CreateItemInput{Name: "Spare", Category: "Misc"})
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteItem(ctx, fresh.ID, &outbox.ActorRef{Subject: "admin-1", Role: "admin"}))
	_, err = h.svc.GetItem(ctx, fresh.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, int64(1), h.eventCount(t, enums.EventItemDeleted))

	err = h.svc.DeleteItem(ctx, fresh.ID, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	stocked, err := h.svc.CreateItem(ctx, CreateItemInput{Name: "Stocked", Category: "Misc", Quantity: 3})
	require.NoError(t, err)
	err = h.svc.DeleteItem(ctx, stocked.ID, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = h.svc.GetItem(ctx, stocked.ID)
	require.NoError(t, err, "item with history survives")
}

func TestConcurrentUpdatesKeepLedgerConsistent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item, err := h.svc.CreateItem(ctx, CreateItemInput{Name: "Pallet", Category: "Logistics", Quantity: 20})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(target int64) {
			defer wg.Done()
			_, _ = h.svc.UpdateItem(ctx, item.ID, UpdateItemInput{Quantity: &target})
		}(int64(i * 5))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.ledger.RecordMovement(ctx, ledger.RecordMovementInput{ItemID: item.ID, Quantity: 2, Type: enums.TransactionTypeOut})
		}()
	}
	wg.Wait()

	h.requireConsistent(t, item.ID)
}
