// Package repository defines error values shared by the data access layer
// and the occupancy engine.  Handlers compare against these sentinels with
// errors.Is to pick HTTP status codes; the engine wraps them with %w to add
// context while keeping the kind recognizable.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrValidation is returned for malformed input: bad or inverted dates,
// unknown payment modes, assignments against a disabled room.
var ErrValidation = errors.New("validation failed")

// ErrRoomNotFound is returned when a room id does not exist in the catalog.
var ErrRoomNotFound = errors.New("room not found")

// ErrResidentNotFound is returned when a resident id does not exist in the
// catalog.
var ErrResidentNotFound = errors.New("resident not found")

// ErrStayNotFound is returned when no active stay with the requested id
// exists.  Releasing an already-closed stay yields this error too: closed
// stays are history and are never mutated again.
var ErrStayNotFound = errors.New("stay not found")

// ErrRoomConflict is returned when an assignment or edit would give a room
// two active stays with overlapping dates.
var ErrRoomConflict = errors.New("room already occupied for the requested dates")

// ErrResidentConflict is returned when a resident already holds an active
// stay.
var ErrResidentConflict = errors.New("resident already has an active stay")

// ErrTransient is returned after bounded retries on lock contention are
// exhausted.  Callers should present it as "please retry", not as a data
// error.
var ErrTransient = errors.New("temporary contention, retry")

// IsLockContention reports whether err is a MySQL lock wait timeout (1205)
// or deadlock (1213).  These are the only errors the engine retries.
func IsLockContention(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1205 || me.Number == 1213
	}
	return false
}
