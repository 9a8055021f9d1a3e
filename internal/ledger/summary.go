package ledger

import (
	"github.com/angelmondragon/cbwis-backend/pkg/db/models"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// Totals holds stock-in and stock-out sums for one group.
type Totals struct {
	In  int64 `json:"in"`
	Out int64 `json:"out"`
}

func (t *Totals) add(txn models.Transaction) {
	if txn.Type == enums.TransactionTypeOut {
		t.Out += txn.Quantity
		return
	}
	t.In += txn.Quantity
}

// ItemTotals is the per-item breakdown. ItemName is the most recent snapshot seen.
type ItemTotals struct {
	ItemName string `json:"item_name"`
	Totals
}

type Summary struct {
	TotalStockIn     int64                 `json:"total_stock_in"`
	TotalStockOut    int64                 `json:"total_stock_out"`
	TransactionCount int                   `json:"transaction_count"`
	ByItem           map[string]ItemTotals `json:"by_item"`
	ByDate           map[string]Totals     `json:"by_date"`
}

// BuildSummary folds transactions into totals keyed by item id and by UTC day.
// Input is expected newest first, as returned by ListTransactions.
func BuildSummary(txns []models.Transaction) Summary {
	summary := Summary{
		TransactionCount: len(txns),
		ByItem:           make(map[string]ItemTotals),
		ByDate:           make(map[string]Totals),
	}
	for _, txn := range txns {
		if txn.Type == enums.TransactionTypeOut {
			summary.TotalStockOut += txn.Quantity
		} else {
			summary.TotalStockIn += txn.Quantity
		}

		key := txn.ItemID.String()
		item, seen := summary.ByItem[key]
		if !seen {
			item.ItemName = txn.ItemName
		}
		item.add(txn)
		summary.ByItem[key] = item

		day := txn.Timestamp.UTC().Format(dayLayout)
		totals := summary.ByDate[day]
		totals.add(txn)
		summary.ByDate[day] = totals
	}
	return summary
}
