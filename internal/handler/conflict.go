package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/occupancy"
	"github.com/havenops/shelter-occupancy/internal/queue"
	queue_publisher "github.com/havenops/shelter-occupancy/internal/service"
)

// ConflictHandler exposes the integrity tooling: list overlapping stays and
// apply the configured repair policy.  Both endpoints are diagnostic and
// operator-triggered; the periodic sweep uses the same engine calls.
type ConflictHandler struct {
	Engine *occupancy.Engine
}

// NewConflictHandler constructs a ConflictHandler.
func NewConflictHandler(engine *occupancy.Engine) *ConflictHandler {
	if engine == nil {
		panic("nil engine passed to NewConflictHandler")
	}
	return &ConflictHandler{Engine: engine}
}

type conflictPairView struct {
	RoomID uint64   `json:"room_id"`
	Older  stayView `json:"older"`
	Newer  stayView `json:"newer"`
}

type resolutionView struct {
	Pair          conflictPairView `json:"pair"`
	Applied       bool             `json:"applied"`
	NewEnd        *string          `json:"new_end,omitempty"`
	NewTotalCents *uint32          `json:"new_total_cents,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

func toPairView(p occupancy.ConflictPair) conflictPairView {
	return conflictPairView{RoomID: p.RoomID, Older: toStayView(&p.Older), Newer: toStayView(&p.Newer)}
}

// Detect handles GET /v1/conflicts.  It scans all active stays as of the
// as_of date (default today) and returns every overlapping pair per room.
// An empty list is the expected steady state.
func (h *ConflictHandler) Detect(c echo.Context) error {
	asOf, ok := asOfParam(c)
	if !ok {
		return nil
	}
	pairs, err := h.Engine.DetectConflicts(c.Request().Context(), asOf)
	if err != nil {
		return writeEngineError(c, err)
	}
	views := make([]conflictPairView, 0, len(pairs))
	for _, p := range pairs {
		views = append(views, toPairView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"as_of": asOf.Format(interval.DateLayout),
		"pairs": views,
	})
}

// Resolve handles POST /v1/conflicts/resolve.  It runs detection as of the
// as_of date and repairs every pair found with the configured policy,
// returning what was applied and what is left for manual review.
func (h *ConflictHandler) Resolve(c echo.Context) error {
	asOf, ok := asOfParam(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	pairs, err := h.Engine.DetectConflicts(ctx, asOf)
	if err != nil {
		return writeEngineError(c, err)
	}
	resolutions, err := h.Engine.ResolveConflicts(ctx, pairs)
	if err != nil {
		return writeEngineError(c, err)
	}
	applied := 0
	views := make([]resolutionView, 0, len(resolutions))
	for _, r := range resolutions {
		v := resolutionView{Pair: toPairView(r.Pair), Applied: r.Applied, NewTotalCents: r.NewTotalCents, Reason: r.Reason}
		if r.NewEnd != nil {
			e := r.NewEnd.Format(interval.DateLayout)
			v.NewEnd = &e
		}
		if r.Applied {
			applied++
		}
		views = append(views, v)
	}
	if len(resolutions) > 0 {
		publishConflictEvent(h.Engine.Policy().Name(), applied, len(resolutions))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"as_of":       asOf.Format(interval.DateLayout),
		"policy":      h.Engine.Policy().Name(),
		"resolutions": views,
	})
}

func publishConflictEvent(policy string, applied, total int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = queue_publisher.PublishStayEvent(ctx, queue.StayEvent{
		Type:       queue.EventConflictResolved,
		Policy:     policy,
		PairCount:  total,
		Detail:     fmt.Sprintf("applied %d of %d", applied, total),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
