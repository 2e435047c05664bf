// Package hos implements the Hours-of-Service core: the pure clock
// computation over a duty-status log and the poll-driven violation detector.
package hos

import (
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// Limits carries the carrier-configured regulatory limits the clocks are
// computed against.
type Limits struct {
	Driving      time.Duration
	Shift        time.Duration
	Cycle        time.Duration
	CycleDays    int
	RestartBreak time.Duration
	ShiftBreak   time.Duration
}

// LimitsFromOptions converts the flag-backed option group into the value type
// the engine consumes.
func LimitsFromOptions(o *options.HosOptions) Limits {
	return Limits{
		Driving:      o.DrivingLimit,
		Shift:        o.ShiftLimit,
		Cycle:        o.CycleLimit,
		CycleDays:    o.CycleDays,
		RestartBreak: o.RestartBreak,
		ShiftBreak:   o.ShiftBreak,
	}
}

// Clocks holds the derived remaining-time values. They are never stored;
// every consumer recomputes them from the event log.
type Clocks struct {
	DrivingRemaining time.Duration `json:"drivingRemaining"`
	ShiftRemaining   time.Duration `json:"shiftRemaining"`
	CycleRemaining   time.Duration `json:"cycleRemaining"`
}

// span is a half-closed [Start, End) interval derived from the event log.
type span struct {
	Start time.Time
	End   time.Time
}

func (s span) duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// overlap returns the portion of s inside [from, to).
func (s span) overlap(from, to time.Time) time.Duration {
	start := s.Start
	if start.Before(from) {
		start = from
	}
	end := s.End
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// ComputeClocks derives the three remaining-time clocks from a time-ordered,
// non-overlapping duty-status log. Ordering is the status store's contract;
// it is not re-validated here.
//
// The function is pure: same inputs, same output, no side effects. An empty
// log is a legitimate "never started" state and yields the configured maxima
// rather than an error.
func ComputeClocks(events []core.StatusEvent, limits Limits, asOf time.Time) Clocks {
	full := Clocks{
		DrivingRemaining: limits.Driving,
		ShiftRemaining:   limits.Shift,
		CycleRemaining:   limits.Cycle,
	}
	if len(events) == 0 {
		return full
	}

	rests := restSpans(events, asOf)

	// Driving and shift clocks run within the window opened by the last
	// qualifying break (>= ShiftBreak continuous rest).
	windowStart := lastBreakEnd(rests, limits.ShiftBreak)

	var driving time.Duration
	var shiftAnchor time.Time
	for _, e := range events {
		end := e.ClampedEnd(asOf)
		if !end.After(windowStart) {
			continue
		}
		start := e.StartTime
		if start.Before(windowStart) {
			start = windowStart
		}
		if !start.Before(asOf) {
			continue
		}
		if e.Status.IsActive() && shiftAnchor.IsZero() {
			shiftAnchor = start
		}
		if e.Status == core.StatusDriving {
			driving += span{Start: start, End: end}.duration()
		}
	}

	clocks := full
	clocks.DrivingRemaining = clampDuration(limits.Driving - driving)

	// The 14-hour window is wall-clock time since first coming on duty after
	// the qualifying break; intervening breaks shorter than ShiftBreak do not
	// extend it.
	if !shiftAnchor.IsZero() {
		clocks.ShiftRemaining = clampDuration(limits.Shift - asOf.Sub(shiftAnchor))
	}

	// Cycle clock: on-duty time within the trailing cycle window, reset by a
	// 34-hour restart. Accumulation starts at the later of the window edge
	// and the end of the last qualifying restart break.
	cycleFrom := asOf.Add(-time.Duration(limits.CycleDays) * 24 * time.Hour)
	if restart := lastBreakEnd(rests, limits.RestartBreak); restart.After(cycleFrom) {
		cycleFrom = restart
	}

	var onDuty time.Duration
	for _, e := range events {
		if !e.Status.IsActive() {
			continue
		}
		onDuty += span{Start: e.StartTime, End: e.ClampedEnd(asOf)}.overlap(cycleFrom, asOf)
	}
	clocks.CycleRemaining = clampDuration(limits.Cycle - onDuty)

	return clocks
}

// restSpans merges adjacent qualifying-rest events (offDuty / sleeperBerth)
// into continuous spans. Personal conveyance interrupts a rest span.
func restSpans(events []core.StatusEvent, asOf time.Time) []span {
	var spans []span
	for _, e := range events {
		if !e.Status.IsRest() {
			continue
		}
		end := e.ClampedEnd(asOf)
		if !end.After(e.StartTime) {
			continue
		}
		if n := len(spans); n > 0 && !e.StartTime.After(spans[n-1].End) {
			if end.After(spans[n-1].End) {
				spans[n-1].End = end
			}
			continue
		}
		spans = append(spans, span{Start: e.StartTime, End: end})
	}
	return spans
}

// lastBreakEnd returns the end of the most recent rest span of at least min
// duration, or the zero time when no such break exists. Spans are already
// clamped at asOf, so a still-open rest qualifies once it is long enough.
func lastBreakEnd(rests []span, min time.Duration) time.Time {
	for i := len(rests) - 1; i >= 0; i-- {
		if rests[i].duration() >= min {
			return rests[i].End
		}
	}
	return time.Time{}
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
