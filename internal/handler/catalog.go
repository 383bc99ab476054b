package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/repository"
)

// CatalogHandler exposes the read-only room and resident catalogs so the
// intake forms can populate their pickers.  Catalog writes happen in the
// administration tooling, never here.
type CatalogHandler struct {
	Rooms     *repository.RoomRepo
	Residents *repository.ResidentRepo
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(rooms *repository.RoomRepo, residents *repository.ResidentRepo) *CatalogHandler {
	if rooms == nil || residents == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{Rooms: rooms, Residents: residents}
}

type roomView struct {
	ID             uint64  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Beds           uint32  `json:"beds"`
	DailyRateCents *uint32 `json:"daily_rate_cents,omitempty"`
	IsActive       bool    `json:"is_active"`
}

func toRoomView(r *model.Room) roomView {
	return roomView{
		ID:             r.ID,
		Name:           r.Name,
		Category:       r.Category,
		Beds:           r.Beds,
		DailyRateCents: r.DailyRateCents,
		IsActive:       r.IsActive,
	}
}

// ListRooms handles GET /v1/rooms.  Optional query parameters: category
// (STANDARD or EMERGENCY) and active=true to hide disabled rooms.
func (h *CatalogHandler) ListRooms(c echo.Context) error {
	category := c.QueryParam("category")
	if category != "" && category != model.RoomCategoryStandard && category != model.RoomCategoryEmergency {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}
	activeOnly := c.QueryParam("active") == "true"
	rooms, err := h.Rooms.List(c.Request().Context(), category, activeOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]roomView, 0, len(rooms))
	for i := range rooms {
		views = append(views, toRoomView(&rooms[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// GetRoom handles GET /v1/rooms/:id.
func (h *CatalogHandler) GetRoom(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	room, err := h.Rooms.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room": toRoomView(room)})
}

// GetResident handles GET /v1/residents/:id.  Only identity is exposed;
// the full intake record lives in the administration system.
func (h *CatalogHandler) GetResident(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resident id"})
	}
	res, err := h.Residents.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resident": echo.Map{
		"id":         res.ID,
		"full_name":  res.FullName,
		"created_at": res.CreatedAt.UTC().Format(time.RFC3339),
	}})
}
