package model

import "time"

// Room category values as stored in rooms.category.
const (
	RoomCategoryStandard  = "STANDARD"
	RoomCategoryEmergency = "EMERGENCY"
)

// Room represents a physical room that can house at most one resident at a
// time.  The room catalog is owned by shelter administration; this service
// only reads it.  IsActive is an operator-controlled flag independent of
// occupancy: a disabled room keeps its historical stays but accepts no new
// assignments.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – human-readable room label, unique.
//  Category       – STANDARD or EMERGENCY.
//  Beds           – number of beds in the room.
//  DailyRateCents – nightly rate in cents (nil when the room is free of charge).
//  IsActive       – whether the room accepts new assignments.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Room struct {
	ID             uint64     // rooms.id
	Name           string     // rooms.name
	Category       string     // rooms.category
	Beds           uint32     // rooms.beds
	DailyRateCents *uint32    // rooms.daily_rate_cents (nullable)
	IsActive       bool       // rooms.is_active
	CreatedAt      time.Time  // rooms.created_at
	UpdatedAt      time.Time  // rooms.updated_at
}
