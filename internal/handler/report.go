package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/occupancy"
)

// ReportHandler exposes the occupancy report.  Responses sit behind the
// Redis cache, so repeated dashboard refreshes over the same window do not
// touch the database.
type ReportHandler struct {
	Engine *occupancy.Engine
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(engine *occupancy.Engine) *ReportHandler {
	if engine == nil {
		panic("nil engine passed to NewReportHandler")
	}
	return &ReportHandler{Engine: engine}
}

// Occupancy handles GET /v1/reports/occupancy.  Required query parameters
// from and to bound the window (inclusive); room_id and category optionally
// narrow the scope.  An inverted or empty window returns zeroed figures
// with a 200, matching how the reporting forms treat "nothing to show".
func (h *ReportHandler) Occupancy(c echo.Context) error {
	from, err := interval.ParseDate(c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or missing from date, expected YYYY-MM-DD"})
	}
	to, err := interval.ParseDate(c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or missing to date, expected YYYY-MM-DD"})
	}
	var filter occupancy.ReportFilter
	if raw := c.QueryParam("room_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room_id"})
		}
		filter.RoomID = id
	}
	if cat := c.QueryParam("category"); cat != "" {
		if cat != model.RoomCategoryStandard && cat != model.RoomCategoryEmergency {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		filter.Category = cat
	}

	rep, err := h.Engine.OccupancyReport(c.Request().Context(), filter, from, to)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"window_start":      rep.WindowStart.Format(interval.DateLayout),
		"window_end":        rep.WindowEnd.Format(interval.DateLayout),
		"window_days":       rep.WindowDays,
		"occupied_days":     rep.OccupiedDays,
		"rate":              rep.Rate,
		"stay_count":        rep.StayCount,
		"avg_duration_days": rep.AvgDurationDays,
		"min_duration_days": rep.MinDurationDays,
		"max_duration_days": rep.MaxDurationDays,
	})
}
