package occupancy

import (
	"context"
	"time"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
)

// ReportFilter narrows an occupancy report to one room or one room
// category.  Zero values mean no filtering.
type ReportFilter struct {
	RoomID   uint64
	Category string
}

// Report aggregates occupancy over a reporting window.  OccupiedDays sums
// the in-window days of every stay intersecting the window, closed stays
// included; Rate is OccupiedDays over WindowDays.  Duration statistics
// cover the full stay lengths, with open stays measured through the window
// end.
type Report struct {
	WindowStart     time.Time
	WindowEnd       time.Time
	WindowDays      int
	OccupiedDays    int
	Rate            float64
	StayCount       int
	AvgDurationDays float64
	MinDurationDays int
	MaxDurationDays int
}

// OccupancyReport computes occupancy over [winStart, winEnd] inclusive.
// An empty window (end before start) or a window without stays yields a
// zeroed report, never an error.
func (e *Engine) OccupancyReport(ctx context.Context, f ReportFilter, winStart, winEnd time.Time) (*Report, error) {
	winStart = interval.Normalize(winStart)
	winEnd = interval.Normalize(winEnd)
	if winEnd.Before(winStart) {
		return &Report{WindowStart: winStart, WindowEnd: winEnd}, nil
	}
	stays, err := e.stays.ListIntersecting(ctx, winStart, winEnd, f.RoomID, f.Category)
	if err != nil {
		return nil, err
	}
	return Summarize(stays, winStart, winEnd), nil
}

// Summarize folds a set of stays into a Report for the given window.  Pure,
// so the reporting arithmetic is testable without a database.  Stays that
// do not actually share a day with the window contribute nothing and are
// not counted.
func Summarize(stays []model.Stay, winStart, winEnd time.Time) *Report {
	rep := &Report{
		WindowStart: winStart,
		WindowEnd:   winEnd,
		WindowDays:  interval.DaysInclusive(winStart, winEnd),
	}
	durationSum := 0
	for _, s := range stays {
		clamped := interval.ClampedOverlapDays(s.StartDate, s.EndDate, winStart, winEnd)
		if clamped == 0 {
			continue
		}
		rep.OccupiedDays += clamped
		d := interval.DurationDays(s.StartDate, s.EndDate, winEnd)
		durationSum += d
		if rep.StayCount == 0 || d < rep.MinDurationDays {
			rep.MinDurationDays = d
		}
		if d > rep.MaxDurationDays {
			rep.MaxDurationDays = d
		}
		rep.StayCount++
	}
	if rep.WindowDays > 0 {
		rep.Rate = float64(rep.OccupiedDays) / float64(rep.WindowDays)
	}
	if rep.StayCount > 0 {
		rep.AvgDurationDays = float64(durationSum) / float64(rep.StayCount)
	}
	return rep
}
