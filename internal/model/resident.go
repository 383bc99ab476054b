package model

import "time"

// Resident identifies a person who may hold at most one active stay.  The
// resident catalog (intake records, personal details) lives outside this
// service; allocation logic uses nothing beyond the identity.
type Resident struct {
	ID        uint64    // residents.id
	FullName  string    // residents.full_name
	CreatedAt time.Time // residents.created_at
}
