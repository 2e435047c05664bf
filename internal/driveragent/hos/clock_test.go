package hos

import (
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

var testLimits = Limits{
	Driving:      11 * time.Hour,
	Shift:        14 * time.Hour,
	Cycle:        70 * time.Hour,
	CycleDays:    8,
	RestartBreak: 34 * time.Hour,
	ShiftBreak:   10 * time.Hour,
}

var base = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

// ev builds a closed event spanning [startH, endH) hours after base.
// A negative endH leaves the event open.
func ev(status core.DutyStatus, startH, endH float64) core.StatusEvent {
	e := core.StatusEvent{
		DriverID:  "drv-1",
		Status:    status,
		StartTime: base.Add(time.Duration(startH * float64(time.Hour))),
	}
	if endH >= 0 {
		e.EndTime = base.Add(time.Duration(endH * float64(time.Hour)))
	}
	return e
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func TestComputeClocks(t *testing.T) {
	tests := []struct {
		name   string
		events []core.StatusEvent
		asOfH  float64
		want   Clocks
	}{
		{
			name:   "empty log yields configured maxima",
			events: nil,
			asOfH:  0,
			want:   Clocks{hours(11), hours(14), hours(70)},
		},
		{
			name: "driving and on-duty accrue independently",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 3),
				ev(core.StatusOnDuty, 3, -1),
			},
			asOfH: 4,
			want:  Clocks{hours(8), hours(10), hours(66)},
		},
		{
			name: "exactly exhausted driving clock reads zero",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, -1),
			},
			asOfH: 11,
			want:  Clocks{0, hours(3), hours(59)},
		},
		{
			name: "overrun clamps to zero rather than going negative",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, -1),
			},
			asOfH: 12,
			want:  Clocks{0, hours(2), hours(58)},
		},
		{
			name: "ten hour break resets driving and shift but not cycle",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 8),
				ev(core.StatusOffDuty, 8, 18),
				ev(core.StatusDriving, 18, -1),
			},
			asOfH: 20,
			want:  Clocks{hours(9), hours(12), hours(60)},
		},
		{
			name: "short break pauses driving but not the shift window",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 5),
				ev(core.StatusOffDuty, 5, 5.5),
				ev(core.StatusDriving, 5.5, -1),
			},
			asOfH: 6.5,
			want:  Clocks{hours(5), hours(7.5), hours(64)},
		},
		{
			name: "adjacent off-duty and sleeper merge into one qualifying break",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 8),
				ev(core.StatusOffDuty, 8, 12),
				ev(core.StatusSleeperBerth, 12, 18),
				ev(core.StatusDriving, 18, -1),
			},
			asOfH: 19,
			want:  Clocks{hours(10), hours(13), hours(61)},
		},
		{
			name: "personal conveyance interrupts a rest span",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 8),
				ev(core.StatusOffDuty, 8, 13),
				ev(core.StatusPersonalConveyance, 13, 14),
				ev(core.StatusOffDuty, 14, 19),
				ev(core.StatusDriving, 19, -1),
			},
			asOfH: 20,
			// Neither 5h rest qualifies, so the shift window still opens
			// at hour 0 and all driving counts.
			want: Clocks{hours(2), 0, hours(61)},
		},
		{
			name: "thirty-four hour restart resets the cycle",
			events: []core.StatusEvent{
				ev(core.StatusOnDuty, 0, 60),
				ev(core.StatusOffDuty, 60, 94),
				ev(core.StatusDriving, 94, -1),
			},
			asOfH: 96,
			want:  Clocks{hours(9), hours(12), hours(68)},
		},
		{
			name: "yard move accrues cycle time but not driving",
			events: []core.StatusEvent{
				ev(core.StatusYardMove, 0, 2),
				ev(core.StatusDriving, 2, -1),
			},
			asOfH: 3,
			want:  Clocks{hours(10), hours(11), hours(67)},
		},
		{
			name: "still-open rest qualifies once long enough",
			events: []core.StatusEvent{
				ev(core.StatusDriving, 0, 4),
				ev(core.StatusOffDuty, 4, -1),
			},
			asOfH: 15,
			want:  Clocks{hours(11), hours(14), hours(66)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeClocks(tt.events, testLimits, base.Add(hours(tt.asOfH)))
			if got != tt.want {
				t.Errorf("ComputeClocks() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeClocksIsPure(t *testing.T) {
	events := []core.StatusEvent{
		ev(core.StatusDriving, 0, 8),
		ev(core.StatusOffDuty, 8, 18),
		ev(core.StatusDriving, 18, -1),
	}
	snapshot := make([]core.StatusEvent, len(events))
	copy(snapshot, events)

	asOf := base.Add(hours(20))
	first := ComputeClocks(events, testLimits, asOf)
	second := ComputeClocks(events, testLimits, asOf)

	if first != second {
		t.Errorf("repeated computation diverged: %+v vs %+v", first, second)
	}
	for i := range events {
		if events[i] != snapshot[i] {
			t.Errorf("input log mutated at index %d", i)
		}
	}
}

func TestSevenDayCycleWindow(t *testing.T) {
	limits := testLimits
	limits.Cycle = 60 * time.Hour
	limits.CycleDays = 7

	// On-duty time older than 7 days ago must fall out of the window.
	events := []core.StatusEvent{
		ev(core.StatusOnDuty, 100, 106), // outside the window at asOf
		ev(core.StatusOnDuty, 200, 210),
	}
	asOf := base.Add(hours(7*24 + 160)) // window opens at hour 160

	got := ComputeClocks(events, limits, asOf)
	if want := hours(50); got.CycleRemaining != want {
		t.Errorf("CycleRemaining = %v, want %v", got.CycleRemaining, want)
	}
}
