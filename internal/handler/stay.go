package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/occupancy"
	"github.com/havenops/shelter-occupancy/internal/queue"
	queue_publisher "github.com/havenops/shelter-occupancy/internal/service"
)

// StayHandler exposes assignment, release and edit of stays.  Successful
// writes publish an event to the broker; publish failures are ignored so a
// broker outage never blocks the front desk.
type StayHandler struct {
	Engine          *occupancy.Engine
	DefaultOperator string
}

// NewStayHandler constructs a StayHandler.  The engine must be non-nil.
func NewStayHandler(engine *occupancy.Engine, defaultOperator string) *StayHandler {
	if engine == nil {
		panic("nil engine passed to NewStayHandler")
	}
	return &StayHandler{Engine: engine, DefaultOperator: defaultOperator}
}

// Assign handles POST /v1/stays.  The body carries resident, room, start
// date, optional end date and payment mode.  On success it returns 201
// with the created stay; a double booking yields 409 naming whether the
// room or the resident is the conflicting side.
func (h *StayHandler) Assign(c echo.Context) error {
	var body struct {
		ResidentID  uint64  `json:"resident_id"`
		RoomID      uint64  `json:"room_id"`
		StartDate   string  `json:"start_date"`
		EndDate     *string `json:"end_date"`
		PaymentMode string  `json:"payment_mode"`
		CreatedBy   string  `json:"created_by"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ResidentID == 0 || body.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resident_id and room_id are required"})
	}
	start, err := interval.ParseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date, expected YYYY-MM-DD"})
	}
	var end *time.Time
	if body.EndDate != nil && *body.EndDate != "" {
		e, err := interval.ParseDate(*body.EndDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
		}
		end = &e
	}
	operator := body.CreatedBy
	if operator == "" {
		operator = h.DefaultOperator
	}
	mode := body.PaymentMode
	if mode == "" {
		mode = model.PaymentFree
	}

	stay, err := h.Engine.Assign(c.Request().Context(), occupancy.AssignInput{
		ResidentID:  body.ResidentID,
		RoomID:      body.RoomID,
		Start:       start,
		End:         end,
		PaymentMode: mode,
		CreatedBy:   operator,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	publishStayEvent(queue.EventStayAssigned, stay)
	return c.JSON(http.StatusCreated, echo.Map{"stay": toStayView(stay)})
}

// Get handles GET /v1/stays/:id and returns the stay, open or closed.
func (h *StayHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stay id"})
	}
	stay, err := h.Engine.GetStay(c.Request().Context(), id)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stay": toStayView(stay)})
}

// Release handles POST /v1/stays/:id/release.  The optional as_of query
// parameter sets the closing date, defaulting to today.  Releasing a stay
// that is already closed returns 404: the caller should treat that as
// "already released", not retry.
func (h *StayHandler) Release(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stay id"})
	}
	asOf, ok := asOfParam(c)
	if !ok {
		return nil
	}
	stay, err := h.Engine.Release(c.Request().Context(), id, asOf)
	if err != nil {
		return writeEngineError(c, err)
	}
	publishStayEvent(queue.EventStayReleased, stay)
	return c.JSON(http.StatusOK, echo.Map{"stay": toStayView(stay)})
}

// AmendEnd handles PATCH /v1/stays/:id.  The body carries the new end
// date; the stay stays open and the room's other stays are re-checked for
// overlap before the change lands.
func (h *StayHandler) AmendEnd(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stay id"})
	}
	var body struct {
		EndDate string `json:"end_date"`
	}
	if err := c.Bind(&body); err != nil || body.EndDate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date is required"})
	}
	end, err := interval.ParseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
	}
	stay, err := h.Engine.AmendEnd(c.Request().Context(), id, end)
	if err != nil {
		return writeEngineError(c, err)
	}
	publishStayEvent(queue.EventStayAmended, stay)
	return c.JSON(http.StatusOK, echo.Map{"stay": toStayView(stay)})
}

// publishStayEvent fires an event for a stay mutation on a short deadline
// of its own; the request has already committed, so failures are only
// logged by the publisher.
func publishStayEvent(eventType string, s *model.Stay) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := queue.StayEvent{
		Type:             eventType,
		StayID:           s.ID,
		RoomID:           s.RoomID,
		ResidentID:       s.ResidentID,
		StartDate:        s.StartDate.Format(interval.DateLayout),
		PaymentMode:      s.PaymentMode,
		TotalAmountCents: s.TotalAmountCents,
		OccurredAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if s.EndDate != nil {
		e := s.EndDate.Format(interval.DateLayout)
		ev.EndDate = &e
	}
	_ = queue_publisher.PublishStayEvent(ctx, ev)
}
