package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cbwis-backend/api/middleware"
	"github.com/angelmondragon/cbwis-backend/api/responses"
	"github.com/angelmondragon/cbwis-backend/api/validators"
	"github.com/angelmondragon/cbwis-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

const itemIDParam = "itemId"

type createItemRequest struct {
	ItemName  string           `json:"item_name" validate:"required,max=200"`
	Category  string           `json:"category" validate:"required,max=100"`
	Supplier  string           `json:"supplier" validate:"max=200"`
	Quantity  int64            `json:"quantity" validate:"gte=0"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,dec_gte=0"`
}

type updateItemRequest struct {
	ItemName  *string          `json:"item_name" validate:"omitempty,max=200"`
	Category  *string          `json:"category" validate:"omitempty,max=100"`
	Supplier  *string          `json:"supplier" validate:"omitempty,max=200"`
	Quantity  *int64           `json:"quantity" validate:"omitempty,gte=0"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,dec_gte=0"`
}

func ListItems(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListItems(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func CreateItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := inventory.CreateItemInput{
			Name:     validators.CleanText(payload.ItemName, 200),
			Category: validators.CleanText(payload.Category, 100),
			Supplier: validators.CleanText(payload.Supplier, 200),
			Quantity: payload.Quantity,
			Actor:    middleware.ActorFromContext(r.Context()),
		}
		if payload.UnitPrice != nil {
			input.UnitPrice = *payload.UnitPrice
		}
		if id, ok := middleware.IdentityFromContext(r.Context()); ok {
			input.PerformedBy = id.Actor()
		}

		item, err := svc.CreateItem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func UpdateItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.isEmpty() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		input := inventory.UpdateItemInput{
			Name:      payload.ItemName,
			Category:  payload.Category,
			Supplier:  payload.Supplier,
			Quantity:  payload.Quantity,
			UnitPrice: payload.UnitPrice,
			Actor:     middleware.ActorFromContext(r.Context()),
		}
		if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
			input.PerformedBy = identity.Actor()
		}

		item, err := svc.UpdateItem(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func DeleteItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, itemIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), id, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func (p updateItemRequest) isEmpty() bool {
	return p.ItemName == nil && p.Category == nil && p.Supplier == nil && p.Quantity == nil && p.UnitPrice == nil
}
