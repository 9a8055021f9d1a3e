package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
)

type movementBody struct {
	ItemID   string          `json:"item_id" validate:"required,uuid"`
	Quantity int64           `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"unit_price" validate:"dec_gte=0"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":"`+uuid.NewString()+`","quantity":3,"unit_price":"2.50"}`))
	var body movementBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, int64(3), body.Quantity)
	assert.True(t, body.Price.Equal(decimal.RequireFromString("2.5")))
}

func TestDecodeJSONBodyFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":"nope","quantity":0,"unit_price":"-1"}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid UUID", details["item_id"])
	assert.Equal(t, "must be greater than 0", details["quantity"])
	assert.Equal(t, "must be greater than or equal to 0", details["unit_price"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":"x","extra":true}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?item_id="+id.String(), nil)
	got, err := ParseQueryUUID(req, "item_id")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	missing, err := ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "item_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?item_id=bad", nil), "item_id")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("itemId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParsePathUUID(req, "itemId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParsePathUUID(httptest.NewRequest(http.MethodGet, "/", nil), "itemId")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "abc", CleanText("  abcdef ", 3))
	assert.Equal(t, "abc", CleanText(" abc ", 0))
	assert.Equal(t, "ab", CleanText("a\x00b\n", 0))
	assert.Equal(t, "åé", CleanText("åéí", 2), "truncates on rune boundaries")
}
