package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
)

const dayLayout = "2006-01-02"

// Filter narrows ListTransactions. Bounds are inclusive.
type Filter struct {
	ItemID    *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

func (f Filter) validate() error {
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "start_date must not be after end_date")
	}
	return nil
}

// ParseBound parses an RFC3339 timestamp or a YYYY-MM-DD day. A bare day used as an
// end bound covers the whole day.
func ParseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}
	day, err := time.ParseInLocation(dayLayout, raw, time.UTC)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid date %q: expected RFC3339 or YYYY-MM-DD", raw)
	}
	if end {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
