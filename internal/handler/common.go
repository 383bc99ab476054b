// Package handler contains the HTTP facade over the occupancy engine.  The
// handlers parse and validate wire input, default the asOf date to today,
// and translate engine errors into status codes; all allocation decisions
// stay inside the engine.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/repository"
)

// stayView is the wire representation of a stay.  Dates go out as plain
// YYYY-MM-DD strings; a missing end_date means the stay is open-ended.
type stayView struct {
	ID               uint64  `json:"id"`
	RoomID           uint64  `json:"room_id"`
	ResidentID       uint64  `json:"resident_id"`
	StartDate        string  `json:"start_date"`
	EndDate          *string `json:"end_date,omitempty"`
	Active           bool    `json:"active"`
	PaymentMode      string  `json:"payment_mode"`
	DailyRateCents   *uint32 `json:"daily_rate_cents,omitempty"`
	TotalAmountCents *uint32 `json:"total_amount_cents,omitempty"`
	CreatedBy        string  `json:"created_by"`
	CreatedAt        string  `json:"created_at"`
}

func toStayView(s *model.Stay) stayView {
	v := stayView{
		ID:               s.ID,
		RoomID:           s.RoomID,
		ResidentID:       s.ResidentID,
		StartDate:        s.StartDate.Format(interval.DateLayout),
		Active:           s.Active,
		PaymentMode:      s.PaymentMode,
		DailyRateCents:   s.DailyRateCents,
		TotalAmountCents: s.TotalAmountCents,
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.EndDate != nil {
		e := s.EndDate.Format(interval.DateLayout)
		v.EndDate = &e
	}
	return v
}

// today is the only place the facade reads the wall clock; every engine
// call below takes the resulting date explicitly.
func today() time.Time {
	return interval.Normalize(time.Now().UTC())
}

// asOfParam reads an optional ?as_of=YYYY-MM-DD query parameter, defaulting
// to today.  The bool result is false when the parameter was present but
// malformed, in which case a 400 has already been written.
func asOfParam(c echo.Context) (time.Time, bool) {
	raw := c.QueryParam("as_of")
	if raw == "" {
		return today(), true
	}
	d, err := interval.ParseDate(raw)
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid as_of date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

// writeEngineError maps engine error kinds onto HTTP responses.  Conflict
// bodies name the violated invariant so the front desk can show an
// actionable message; transient failures read as "please retry".
func writeEngineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrResidentNotFound),
		errors.Is(err, repository.ErrStayNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrResidentConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "conflict": "resident"})
	case errors.Is(err, repository.ErrRoomConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "conflict": "room"})
	case errors.Is(err, repository.ErrTransient):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporary contention, please retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
