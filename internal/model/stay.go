package model

import "time"

// Payment modes as stored in stays.payment_mode.
const (
	PaymentFree     = "FREE"
	PaymentPayNow   = "PAY_NOW"
	PaymentDeferred = "DEFERRED"
)

// ValidPaymentMode reports whether s is one of the three payment modes.
func ValidPaymentMode(s string) bool {
	return s == PaymentFree || s == PaymentPayNow || s == PaymentDeferred
}

// Stay records one resident occupying one room over an inclusive date
// interval.  It is the only entity this service owns and mutates.  A nil
// EndDate marks an open-ended stay whose duration is not yet known; such a
// stay blocks the room for all future dates until it is released or its end
// is amended.  Active=false stays are closed history, immutable and excluded
// from every availability and conflict check.
//
// Fields:
//  ID               – primary key identifier.
//  RoomID           – room being occupied.
//  ResidentID       – resident occupying the room.
//  StartDate        – first day of the stay, inclusive.
//  EndDate          – last day of the stay, inclusive (nil = open-ended).
//  Active           – whether the stay is open; false is terminal.
//  PaymentMode      – FREE, PAY_NOW or DEFERRED.
//  DailyRateCents   – nightly rate frozen from the room at assignment
//                     (nil for free stays).
//  TotalAmountCents – daily rate times inclusive day count; nil until both
//                     the rate and the end date are known.
//  CreatedBy        – operator who recorded the assignment.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Stay struct {
	ID               uint64     // stays.id
	RoomID           uint64     // stays.room_id
	ResidentID       uint64     // stays.resident_id
	StartDate        time.Time  // stays.start_date
	EndDate          *time.Time // stays.end_date (nullable)
	Active           bool       // stays.active
	PaymentMode      string     // stays.payment_mode
	DailyRateCents   *uint32    // stays.daily_rate_cents (nullable)
	TotalAmountCents *uint32    // stays.total_amount_cents (nullable)
	CreatedBy        string     // stays.created_by
	CreatedAt        time.Time  // stays.created_at
	UpdatedAt        time.Time  // stays.updated_at
}
