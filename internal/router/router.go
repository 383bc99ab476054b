// Package router wires the HTTP routes onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/handler"
)

// Handlers bundles everything the routes need.  All fields must be
// non-nil; cache may be a pass-through middleware when Redis is down.
type Handlers struct {
	Stays        *handler.StayHandler
	Availability *handler.AvailabilityHandler
	Conflicts    *handler.ConflictHandler
	Reports      *handler.ReportHandler
	Catalog      *handler.CatalogHandler
	Cache        echo.MiddlewareFunc
}

// RegisterRoutes registers the health check and all /v1 endpoints.  The
// read-only catalog, availability and report routes sit behind the response
// cache; writes never do.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")

	// Stay lifecycle: assign, inspect, amend, release.
	v1.POST("/stays", h.Stays.Assign)
	v1.GET("/stays/:id", h.Stays.Get)
	v1.PATCH("/stays/:id", h.Stays.AmendEnd)
	v1.POST("/stays/:id/release", h.Stays.Release)

	// Read-only queries behind the response cache.
	cached := e.Group("/v1", h.Cache)
	cached.GET("/rooms", h.Catalog.ListRooms)
	cached.GET("/rooms/:id", h.Catalog.GetRoom)
	cached.GET("/residents/:id", h.Catalog.GetResident)
	cached.GET("/rooms/:id/availability", h.Availability.RoomAvailability)
	cached.GET("/residents/:id/housed", h.Availability.ResidentHoused)
	cached.GET("/reports/occupancy", h.Reports.Occupancy)

	// Integrity tooling. Detection is cached-free on purpose: an operator
	// checking for conflicts needs the live picture.
	v1.GET("/conflicts", h.Conflicts.Detect)
	v1.POST("/conflicts/resolve", h.Conflicts.Resolve)
}
