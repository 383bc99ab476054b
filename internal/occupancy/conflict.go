package occupancy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/repository"
)

// ConflictPair is two active stays on the same room with overlapping dates.
// Older is the stay with the earlier start (earlier id on a tie).  Pairs
// only exist when the assignment invariant has been violated, e.g. by data
// imported from outside or a historical defect, so in steady state the
// detector returns nothing.
type ConflictPair struct {
	RoomID uint64
	Older  model.Stay
	Newer  model.Stay
}

// DetectConflicts scans all active stays and returns every overlapping pair
// per room, ordered by room id and then by the older stay's start date.
// Open-ended stays are resolved against asOf.  The scan is quadratic per
// room and runs off the write path, on demand or from the periodic sweep.
func (e *Engine) DetectConflicts(ctx context.Context, asOf time.Time) ([]ConflictPair, error) {
	stays, err := e.stays.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return DetectAmong(stays, interval.Normalize(asOf)), nil
}

// DetectAmong performs the pairwise overlap scan over a snapshot of active
// stays.  It is pure so the detection logic can be tested without a
// database.
func DetectAmong(stays []model.Stay, asOf time.Time) []ConflictPair {
	sorted := make([]model.Stay, len(stays))
	copy(sorted, stays)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	pairs := make([]ConflictPair, 0)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted) && sorted[j].RoomID == sorted[i].RoomID; j++ {
			a, b := sorted[i], sorted[j]
			if interval.Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate, asOf) {
				pairs = append(pairs, ConflictPair{RoomID: a.RoomID, Older: a, Newer: b})
			}
		}
	}
	return pairs
}

// Resolution is the outcome of repairing one conflict pair.  When Applied
// is false the pair was left untouched and Reason says why; such items need
// an operator's decision and must not be dropped.
type Resolution struct {
	Pair          ConflictPair
	Applied       bool
	NewEnd        *time.Time
	NewTotalCents *uint32
	Reason        string
}

// ResolutionPolicy decides how a single conflict pair should be repaired.
// Which side of a pair gets truncated is an operational choice, not a rule
// derivable from the data, so it lives behind this interface rather than in
// the detector.
type ResolutionPolicy interface {
	// Name identifies the policy in logs and events.
	Name() string
	// Plan computes the repair for one pair without touching storage.
	Plan(pair ConflictPair) Resolution
}

// TruncateEarlier is the shipped policy: it always favors the later
// starting stay and shortens the earlier one to end the day before the
// newer stay begins.  When that would leave the older stay with no days at
// all, the pair is flagged for manual review instead of applied; zero
// length stays are not permitted.
type TruncateEarlier struct{}

// Name implements ResolutionPolicy.
func (TruncateEarlier) Name() string { return "truncate-earlier" }

// Plan implements ResolutionPolicy.
func (TruncateEarlier) Plan(pair ConflictPair) Resolution {
	newEnd := pair.Newer.StartDate.AddDate(0, 0, -1)
	if newEnd.Before(pair.Older.StartDate) {
		return Resolution{
			Pair:   pair,
			Reason: fmt.Sprintf("truncating stay %d would leave it without a single day; manual review required", pair.Older.ID),
		}
	}
	return Resolution{
		Pair:          pair,
		Applied:       true,
		NewEnd:        &newEnd,
		NewTotalCents: computeAmount(pair.Older.DailyRateCents, pair.Older.StartDate, newEnd),
	}
}

// ResolveConflicts repairs the given pairs with the configured policy.
// Applied repairs go through the same per-row locking as every other stay
// write; a stay that was released or edited since detection is reported as
// unapplied rather than overwritten.  Re-running detection after a resolve
// finds no remaining conflicts among the pairs repaired here.
func (e *Engine) ResolveConflicts(ctx context.Context, pairs []ConflictPair) ([]Resolution, error) {
	results := make([]Resolution, 0, len(pairs))
	for _, pair := range pairs {
		res := e.policy.Plan(pair)
		if !res.Applied {
			results = append(results, res)
			continue
		}
		if err := e.applyResolution(ctx, &res); err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) applyResolution(ctx context.Context, res *Resolution) error {
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
		current, err := e.stays.GetActiveByIDTx(ctx, tx, res.Pair.Older.ID)
		if err != nil {
			return err
		}
		// A concurrent edit since detection invalidates the plan; leave the
		// stay alone and let the next detector run decide.
		if !staleEndEqual(current.EndDate, res.Pair.Older.EndDate) {
			return repository.ErrStayNotFound
		}
		if err := e.stays.UpdateEndTx(ctx, tx, current.ID, *res.NewEnd, res.NewTotalCents); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	})
	if errors.Is(err, repository.ErrStayNotFound) {
		res.Applied = false
		res.NewEnd = nil
		res.NewTotalCents = nil
		res.Reason = fmt.Sprintf("stay %d changed since detection; re-run detection", res.Pair.Older.ID)
		return nil
	}
	return err
}

func staleEndEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
