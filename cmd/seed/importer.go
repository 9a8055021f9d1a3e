package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cbwis-backend/internal/inventory"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

const (
	inventoryFile    = "inventory.json"
	transactionsFile = "transactions.json"
	seedActor        = "seed"
)

type seedItem struct {
	ItemName  string          `json:"itemName"`
	Category  string          `json:"category"`
	Supplier  string          `json:"supplier"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type seedTransaction struct {
	ItemName        string `json:"itemName"`
	TransactionType string `json:"transactionType"`
	Quantity        int64  `json:"quantity"`
	PerformedBy     string `json:"performedBy"`
}

type inventoryDocument struct {
	Items []seedItem `json:"items"`
	// Legacy exports used "inventory" as the top-level key.
	Inventory []seedItem `json:"inventory"`
}

type transactionsDocument struct {
	Transactions []seedTransaction `json:"transactions"`
}

type itemFinder interface {
	FindByName(ctx context.Context, name string) (*models.Item, error)
}

// Summary counts what an import did.
type Summary struct {
	ItemsCreated        int
	ItemsSkipped        int
	TransactionsApplied int
	TransactionsSkipped int
}

type importer struct {
	inventory inventory.Service
	ledger    ledger.Service
	items     itemFinder
	logg      *logger.Logger
}

// Run loads both files from dir. A missing file is skipped, a malformed one fails the run.
func (im *importer) Run(ctx context.Context, dir string) (Summary, error) {
	var summary Summary

	var invDoc inventoryDocument
	found, err := readDocument(filepath.Join(dir, inventoryFile), &invDoc)
	if err != nil {
		return summary, err
	}
	if !found {
		im.logg.Warn(ctx, inventoryFile+" not found, skipping items")
	}
	items := invDoc.Items
	if len(items) == 0 {
		items = invDoc.Inventory
	}
	for _, item := range items {
		if err := im.importItem(ctx, item, &summary); err != nil {
			return summary, err
		}
	}

	var txnDoc transactionsDocument
	found, err = readDocument(filepath.Join(dir, transactionsFile), &txnDoc)
	if err != nil {
		return summary, err
	}
	if !found {
		im.logg.Warn(ctx, transactionsFile+" not found, skipping transactions")
	}
	for _, txn := range txnDoc.Transactions {
		if err := im.importTransaction(ctx, txn, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (im *importer) importItem(ctx context.Context, item seedItem, summary *Summary) error {
	ctx = im.logg.WithField(ctx, "item_name", item.ItemName)
	_, err := im.items.FindByName(ctx, strings.TrimSpace(item.ItemName))
	switch {
	case err == nil:
		im.logg.Warn(ctx, "item already exists, skipping")
		summary.ItemsSkipped++
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("lookup item %q: %w", item.ItemName, err)
	}

	_, err = im.inventory.CreateItem(ctx, inventory.CreateItemInput{
		Name:        item.ItemName,
		Category:    item.Category,
		Supplier:    item.Supplier,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		PerformedBy: seedActor,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			im.logg.Warn(ctx, "invalid item skipped: "+typed.Error())
			summary.ItemsSkipped++
			return nil
		}
		return fmt.Errorf("create item %q: %w", item.ItemName, err)
	}
	summary.ItemsCreated++
	return nil
}

func (im *importer) importTransaction(ctx context.Context, txn seedTransaction, summary *Summary) error {
	ctx = im.logg.WithFields(ctx, map[string]any{
		"item_name":        txn.ItemName,
		"transaction_type": txn.TransactionType,
	})

	item, err := im.items.FindByName(ctx, strings.TrimSpace(txn.ItemName))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			im.logg.Warn(ctx, "transaction references unknown item, skipping")
			summary.TransactionsSkipped++
			return nil
		}
		return fmt.Errorf("lookup item %q: %w", txn.ItemName, err)
	}

	txnType, err := enums.ParseTransactionType(txn.TransactionType)
	if err != nil {
		im.logg.Warn(ctx, "unknown transaction type, skipping")
		summary.TransactionsSkipped++
		return nil
	}

	performedBy := strings.TrimSpace(txn.PerformedBy)
	if performedBy == "" {
		performedBy = seedActor
	}
	_, err = im.ledger.RecordMovement(ctx, ledger.RecordMovementInput{
		ItemID:      item.ID,
		Quantity:    txn.Quantity,
		Type:        txnType,
		PerformedBy: performedBy,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && isSkippable(typed.Code()) {
			im.logg.Warn(ctx, "transaction rejected, skipping: "+typed.Error())
			summary.TransactionsSkipped++
			return nil
		}
		return fmt.Errorf("record %s for item %s: %w", txnType, item.ID, err)
	}
	summary.TransactionsApplied++
	return nil
}

func isSkippable(code pkgerrors.Code) bool {
	return code == pkgerrors.CodeValidation || code == pkgerrors.CodeInsufficientStock
}

func readDocument(path string, dst any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}
