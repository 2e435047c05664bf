package inactivity

import (
	"context"
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

// newTestMonitor shortens the regulatory delays so the full timer cycle
// runs in milliseconds.
func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m := NewMonitor("drv-1")
	m.stopDelay = 30 * time.Millisecond
	m.promptDelay = 20 * time.Millisecond
	t.Cleanup(m.Close)
	return m
}

func awaitEvent(t *testing.T, m *Monitor, want EventKind) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		if ev.Kind != want {
			t.Fatalf("got event %q, want %q", ev.Kind, want)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
		return Event{}
	}
}

func assertNoEvent(t *testing.T, m *Monitor, within time.Duration) {
	t.Helper()
	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %q", ev.Kind)
	case <-time.After(within):
	}
}

func TestPromptThenAutoSwitch(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(t)

	m.Update(ctx, 40, core.StatusDriving)
	m.Update(ctx, 0, core.StatusDriving)

	if st := m.State(); !st.Stopped || st.StoppedAt.IsZero() {
		t.Fatalf("expected stopped state, got %+v", st)
	}

	awaitEvent(t, m, EventPrompt)
	if st := m.State(); !st.PromptFired {
		t.Errorf("PromptFired not set after prompt: %+v", st)
	}

	awaitEvent(t, m, EventAutoSwitch)
	if st := m.State(); !st.AutoSwitchFired {
		t.Errorf("AutoSwitchFired not set after auto-switch: %+v", st)
	}
}

func TestMovementResumedCancelsPrompt(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(t)

	m.Update(ctx, 40, core.StatusDriving)
	m.Update(ctx, 0, core.StatusDriving)
	m.Update(ctx, 25, core.StatusDriving)

	assertNoEvent(t, m, 100*time.Millisecond)
	if st := m.State(); st.Stopped || st.PromptFired {
		t.Errorf("expected a clean moving state, got %+v", st)
	}
}

func TestAckRestartsCycleWithoutLeavingDriving(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(t)

	m.Update(ctx, 40, core.StatusDriving)
	m.Update(ctx, 0, core.StatusDriving)
	awaitEvent(t, m, EventPrompt)

	m.HandleUserResponse(ctx)
	assertNoEvent(t, m, 100*time.Millisecond)

	if st := m.State(); !st.Monitoring || st.AutoSwitchFired {
		t.Fatalf("expected monitoring to continue after ack, got %+v", st)
	}

	// The acknowledged stop is forgotten: a new stop starts a fresh cycle.
	m.Update(ctx, 0, core.StatusDriving)
	awaitEvent(t, m, EventPrompt)
}

func TestNonDrivingStatusDisarms(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(t)

	m.Update(ctx, 40, core.StatusDriving)
	m.Update(ctx, 0, core.StatusDriving)
	m.Update(ctx, 0, core.StatusOnDuty)

	assertNoEvent(t, m, 100*time.Millisecond)
	if st := m.State(); st.Monitoring || st.Stopped || st.PromptFired {
		t.Errorf("expected disarmed state, got %+v", st)
	}
}

func TestStopSpeedThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor(t)

	m.Update(ctx, 40, core.StatusDriving)

	// 5 mph is still moving; anything below it is a stop.
	m.Update(ctx, 5.0, core.StatusDriving)
	if st := m.State(); st.Stopped {
		t.Fatalf("5 mph must not count as stopped: %+v", st)
	}

	m.Update(ctx, 4.9, core.StatusDriving)
	if st := m.State(); !st.Stopped {
		t.Fatalf("4.9 mph must count as stopped: %+v", st)
	}
}

func TestAutoSwitchEventSurvivesFullBuffer(t *testing.T) {
	m := NewMonitor("drv-1")
	defer m.Close()

	for i := 0; i < cap(m.events); i++ {
		m.emit(EventPrompt)
	}

	// A further prompt is droppable; the forced status change is not.
	m.emit(EventPrompt)
	m.emit(EventAutoSwitch)

	var kinds []EventKind
drain:
	for {
		select {
		case ev := <-m.events:
			kinds = append(kinds, ev.Kind)
		default:
			break drain
		}
	}

	if len(kinds) != cap(m.events) {
		t.Fatalf("got %d queued events, want a full buffer of %d", len(kinds), cap(m.events))
	}
	if kinds[len(kinds)-1] != EventAutoSwitch {
		t.Errorf("last queued event = %q, auto-switch must survive a full buffer", kinds[len(kinds)-1])
	}
	for _, k := range kinds[:len(kinds)-1] {
		if k != EventPrompt {
			t.Errorf("unexpected queued event %q", k)
		}
	}
}
