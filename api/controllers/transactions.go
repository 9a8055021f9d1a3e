package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cbwis-backend/api/middleware"
	"github.com/angelmondragon/cbwis-backend/api/responses"
	"github.com/angelmondragon/cbwis-backend/api/validators"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

const maxPerformedByLen = 200

type movementRequest struct {
	ItemID      string `json:"item_id" validate:"required,uuid"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	PerformedBy string `json:"performed_by" validate:"max=200"`
}

// StockIn records an IN movement.
func StockIn(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordMovement(svc, logg, enums.TransactionTypeIn)
}

// StockOut records an OUT movement. Over-withdrawal fails with INSUFFICIENT_STOCK.
func StockOut(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordMovement(svc, logg, enums.TransactionTypeOut)
}

func recordMovement(svc ledger.Service, logg *logger.Logger, txnType enums.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload movementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		performedBy := validators.CleanText(payload.PerformedBy, maxPerformedByLen)
		if performedBy == "" {
			if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
				performedBy = identity.Actor()
			}
		}

		txn, err := svc.RecordMovement(r.Context(), ledger.RecordMovementInput{
			ItemID:      uuid.MustParse(payload.ItemID),
			Quantity:    payload.Quantity,
			Type:        txnType,
			PerformedBy: performedBy,
			Actor:       middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ledger.NewTransactionDTO(txn))
	}
}

// ListTransactions accepts item_id, start_date and end_date query filters.
func ListTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTransactions(w, r, svc, logg, filter)
	}
}

func ItemTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTransactions(w, r, svc, logg, ledger.Filter{ItemID: &id})
	}
}

// TransactionsInRange lists transactions between start_date and end_date inclusive.
func TransactionsInRange(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseDateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTransactions(w, r, svc, logg, filter)
	}
}

func writeTransactions(w http.ResponseWriter, r *http.Request, svc ledger.Service, logg *logger.Logger, filter ledger.Filter) {
	txns, err := svc.ListTransactions(r.Context(), filter)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, ledger.NewTransactionDTOs(txns))
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	filter, err := parseDateRange(r)
	if err != nil {
		return ledger.Filter{}, err
	}
	itemID, err := validators.ParseQueryUUID(r, "item_id")
	if err != nil {
		return ledger.Filter{}, err
	}
	filter.ItemID = itemID
	return filter, nil
}

func parseDateRange(r *http.Request) (ledger.Filter, error) {
	start, err := ledger.ParseBound(queryValue(r, "start_date", "startDate"), false)
	if err != nil {
		return ledger.Filter{}, err
	}
	end, err := ledger.ParseBound(queryValue(r, "end_date", "endDate"), true)
	if err != nil {
		return ledger.Filter{}, err
	}
	return ledger.Filter{StartDate: start, EndDate: end}, nil
}

// queryValue returns the first non-empty of the given parameter spellings.
func queryValue(r *http.Request, keys ...string) string {
	query := r.URL.Query()
	for _, key := range keys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
