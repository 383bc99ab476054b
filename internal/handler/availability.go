package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/occupancy"
)

// AvailabilityHandler exposes the read-only point checks.  These are
// convenience queries for the intake forms; the engine re-checks under a
// lock when an assignment is actually attempted.
type AvailabilityHandler struct {
	Engine *occupancy.Engine
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(engine *occupancy.Engine) *AvailabilityHandler {
	if engine == nil {
		panic("nil engine passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Engine: engine}
}

// RoomAvailability handles GET /v1/rooms/:id/availability.  It reports
// whether the room is free on as_of (default today).
func (h *AvailabilityHandler) RoomAvailability(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	asOf, ok := asOfParam(c)
	if !ok {
		return nil
	}
	free, err := h.Engine.IsRoomFree(c.Request().Context(), id, asOf)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room_id": id,
		"as_of":   asOf.Format(interval.DateLayout),
		"free":    free,
	})
}

// ResidentHoused handles GET /v1/residents/:id/housed.  It reports whether
// the resident holds an active stay covering as_of (default today).
func (h *AvailabilityHandler) ResidentHoused(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resident id"})
	}
	asOf, ok := asOfParam(c)
	if !ok {
		return nil
	}
	housed, err := h.Engine.IsResidentHoused(c.Request().Context(), id, asOf)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"resident_id": id,
		"as_of":       asOf.Format(interval.DateLayout),
		"housed":      housed,
	})
}
