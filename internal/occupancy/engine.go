// Package occupancy implements the room allocation engine: assignment and
// release of stays, availability checks, conflict detection with a
// swappable repair policy, and occupancy reporting.  Every operation takes
// the dates it reasons about as parameters; nothing in this package reads
// the wall clock, so tests fix time by passing fixed dates.
package occupancy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/repository"
)

const (
	// lockRetries bounds how often a write is re-attempted after a lock
	// wait timeout or deadlock before surfacing ErrTransient.
	lockRetries = 3
	// lockRetryBackoff is the base delay between attempts; attempt n waits
	// n times this long.
	lockRetryBackoff = 50 * time.Millisecond
)

// Engine coordinates the stay store and the read-only catalogs.  All writes
// run in transactions begun here; the repositories never commit on their
// own.
type Engine struct {
	db        *sql.DB
	rooms     *repository.RoomRepo
	residents *repository.ResidentRepo
	stays     *repository.StayRepo
	policy    ResolutionPolicy
}

// NewEngine constructs an Engine over the given repositories.  The conflict
// resolution policy defaults to TruncateEarlier; use SetPolicy to swap it.
func NewEngine(db *sql.DB, rooms *repository.RoomRepo, residents *repository.ResidentRepo, stays *repository.StayRepo) *Engine {
	if db == nil || rooms == nil || residents == nil || stays == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{db: db, rooms: rooms, residents: residents, stays: stays, policy: TruncateEarlier{}}
}

// SetPolicy replaces the conflict resolution policy.
func (e *Engine) SetPolicy(p ResolutionPolicy) {
	if p != nil {
		e.policy = p
	}
}

// Policy returns the active conflict resolution policy.
func (e *Engine) Policy() ResolutionPolicy { return e.policy }

// AssignInput carries the parameters of a new assignment.  End may be nil
// for an open-ended stay.
type AssignInput struct {
	ResidentID  uint64
	RoomID      uint64
	Start       time.Time
	End         *time.Time
	PaymentMode string
	CreatedBy   string
}

// Assign creates a new open stay after checking, in order: that room and
// resident exist and the room accepts assignments, that the dates are
// coherent, that the resident holds no other active stay, and that no
// active stay on the room overlaps the requested interval.  The conflict
// checks and the insert run in one transaction with the room row locked, so
// two concurrent assignments for the same room or resident cannot both
// succeed.  Lock contention is retried a bounded number of times and then
// surfaced as ErrTransient.
func (e *Engine) Assign(ctx context.Context, in AssignInput) (*model.Stay, error) {
	room, err := e.rooms.GetByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, fmt.Errorf("room %d is disabled: %w", in.RoomID, repository.ErrValidation)
	}
	if _, err := e.residents.GetByID(ctx, in.ResidentID); err != nil {
		return nil, err
	}
	if !model.ValidPaymentMode(in.PaymentMode) {
		return nil, fmt.Errorf("unknown payment mode %q: %w", in.PaymentMode, repository.ErrValidation)
	}
	start := interval.Normalize(in.Start)
	var end *time.Time
	if in.End != nil {
		e2 := interval.Normalize(*in.End)
		if e2.Before(start) {
			return nil, fmt.Errorf("end date before start date: %w", repository.ErrValidation)
		}
		end = &e2
	}

	// The rate is frozen from the room catalog at assignment so later rate
	// changes never reprice an existing stay.
	var rate *uint32
	if in.PaymentMode != model.PaymentFree && room.DailyRateCents != nil {
		r := *room.DailyRateCents
		rate = &r
	}

	var created *model.Stay
	err = e.withLockRetry(ctx, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		// Serialize against concurrent assignments for the same room.
		if _, err := e.rooms.LockByIDTx(ctx, tx, in.RoomID); err != nil {
			return err
		}
		held, err := e.stays.ActiveByResidentTx(ctx, tx, in.ResidentID)
		if err != nil {
			return err
		}
		if len(held) > 0 {
			return fmt.Errorf("resident %d holds stay %d: %w", in.ResidentID, held[0].ID, repository.ErrResidentConflict)
		}
		overlaps, err := e.stays.FindOverlappingForRoomTx(ctx, tx, in.RoomID, start, end, 0)
		if err != nil {
			return err
		}
		if len(overlaps) > 0 {
			return fmt.Errorf("room %d has stay %d overlapping the requested dates: %w",
				in.RoomID, overlaps[0].ID, repository.ErrRoomConflict)
		}
		stay := &model.Stay{
			RoomID:         in.RoomID,
			ResidentID:     in.ResidentID,
			StartDate:      start,
			EndDate:        end,
			Active:         true,
			PaymentMode:    in.PaymentMode,
			DailyRateCents: rate,
			CreatedBy:      in.CreatedBy,
		}
		if end != nil {
			stay.TotalAmountCents = computeAmount(rate, start, *end)
		}
		if err := e.stays.CreateTx(ctx, tx, stay); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		created = stay
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Release closes an active stay as of the given date, freezing its end and
// final amount.  A stay that does not exist or was already closed yields
// ErrStayNotFound; callers must read that as "already released", never as
// something to retry.
func (e *Engine) Release(ctx context.Context, stayID uint64, asOf time.Time) (*model.Stay, error) {
	end := interval.Normalize(asOf)
	var released *model.Stay
	err := e.withLockRetry(ctx, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		stay, err := e.stays.GetActiveByIDTx(ctx, tx, stayID)
		if err != nil {
			return err
		}
		if end.Before(stay.StartDate) {
			return fmt.Errorf("release date before stay start: %w", repository.ErrValidation)
		}
		total := computeAmount(stay.DailyRateCents, stay.StartDate, end)
		if err := e.stays.CloseTx(ctx, tx, stayID, end, total); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		stay.EndDate = &end
		stay.Active = false
		stay.TotalAmountCents = total
		released = stay
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// AmendEnd changes the end date of a still-open stay without closing it.
// The new interval is re-checked against the room's other active stays,
// excluding the stay itself, under the same locking discipline as Assign.
func (e *Engine) AmendEnd(ctx context.Context, stayID uint64, newEnd time.Time) (*model.Stay, error) {
	end := interval.Normalize(newEnd)
	var amended *model.Stay
	err := e.withLockRetry(ctx, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		stay, err := e.stays.GetActiveByIDTx(ctx, tx, stayID)
		if err != nil {
			return err
		}
		if end.Before(stay.StartDate) {
			return fmt.Errorf("end date before stay start: %w", repository.ErrValidation)
		}
		if _, err := e.rooms.LockByIDTx(ctx, tx, stay.RoomID); err != nil {
			return err
		}
		overlaps, err := e.stays.FindOverlappingForRoomTx(ctx, tx, stay.RoomID, stay.StartDate, &end, stayID)
		if err != nil {
			return err
		}
		if len(overlaps) > 0 {
			return fmt.Errorf("room %d has stay %d overlapping the amended dates: %w",
				stay.RoomID, overlaps[0].ID, repository.ErrRoomConflict)
		}
		total := computeAmount(stay.DailyRateCents, stay.StartDate, end)
		if err := e.stays.UpdateEndTx(ctx, tx, stayID, end, total); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		stay.EndDate = &end
		stay.TotalAmountCents = total
		amended = stay
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amended, nil
}

// GetStay returns a stay by id, open or closed.
func (e *Engine) GetStay(ctx context.Context, stayID uint64) (*model.Stay, error) {
	return e.stays.GetByID(ctx, stayID)
}

// IsRoomFree reports whether no active stay covers the room on the given
// date.  It is a pre-check for callers; Assign does not rely on it.
func (e *Engine) IsRoomFree(ctx context.Context, roomID uint64, asOf time.Time) (bool, error) {
	if _, err := e.rooms.GetByID(ctx, roomID); err != nil {
		return false, err
	}
	occupied, err := e.stays.RoomOccupied(ctx, roomID, interval.Normalize(asOf))
	if err != nil {
		return false, err
	}
	return !occupied, nil
}

// IsResidentHoused reports whether the resident holds an active stay
// covering the given date.
func (e *Engine) IsResidentHoused(ctx context.Context, residentID uint64, asOf time.Time) (bool, error) {
	if _, err := e.residents.GetByID(ctx, residentID); err != nil {
		return false, err
	}
	return e.stays.ResidentHoused(ctx, residentID, interval.Normalize(asOf))
}

// withLockRetry runs op, re-running it after a short backoff when it fails
// with MySQL lock contention.  After lockRetries attempts the last error is
// wrapped as ErrTransient so callers can tell "please retry" apart from
// data errors.
func (e *Engine) withLockRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= lockRetries; attempt++ {
		err = op()
		if err == nil || !repository.IsLockContention(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * lockRetryBackoff):
		}
	}
	return fmt.Errorf("lock contention after %d attempts (%v): %w", lockRetries, err, repository.ErrTransient)
}

// computeAmount prices an interval at the inclusive day count: rate times
// (end - start + 1 days).  Returns nil when no rate applies.
func computeAmount(rateCents *uint32, start, end time.Time) *uint32 {
	if rateCents == nil {
		return nil
	}
	total := *rateCents * uint32(interval.DaysInclusive(start, end))
	return &total
}
