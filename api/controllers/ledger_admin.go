package controllers

import (
	"net/http"

	"github.com/angelmondragon/cbwis-backend/api/responses"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

// LedgerDrift reports items whose cached quantity disagrees with their ledger.
// It neither repairs nor records anything.
func LedgerDrift(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.DetectDrift(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LedgerReconcile repairs drifted items by resetting their quantity to the ledger sum.
func LedgerReconcile(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Reconcile(r.Context(), ledger.ReconcileInput{Repair: true})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
