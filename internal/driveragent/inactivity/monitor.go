// Package inactivity implements the regulatory vehicle-inactivity monitor:
// a two-stage timer state machine that prompts the driver after five minutes
// stopped while driving, and forces a switch to on-duty one minute later if
// the prompt goes unanswered.
package inactivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/metrics"
	fsmutil "github.com/trucklink-io/trucklink/internal/pkg/util/fsm"
	"github.com/trucklink-io/trucklink/pkg/log"
)

// Fixed by 49 CFR part 395 appendix A: neither the delays nor the speed
// threshold are exposed as configuration.
const (
	stopSpeedThresholdMph = 5.0
	stopDelay             = 5 * time.Minute
	promptDelay           = time.Minute
)

// Monitor states.
const (
	StateIdle          = "idle"
	StateMoving        = "moving"
	StateStopped       = "stopped"
	StatePromptPending = "prompt_pending"
	StateAutoSwitched  = "auto_switched"
)

// Transition events.
const (
	eventArm           = "arm"
	eventDisarm        = "disarm"
	eventStop          = "stop_detected"
	eventResume        = "movement_resumed"
	eventPromptTimeout = "prompt_timeout"
	eventSwitchTimeout = "switch_timeout"
	eventDriverAck     = "driver_ack"
)

// EventKind identifies an outbound monitor notification.
type EventKind string

const (
	// EventPrompt asks the driver to confirm they are still driving.
	EventPrompt EventKind = "prompt_required"
	// EventAutoSwitch requests the forced transition to on-duty.
	EventAutoSwitch EventKind = "auto_switch"
)

// Event is an outbound monitor notification, published on the events channel
// so any number of consumers (status store wiring, UI, logging) can react.
type Event struct {
	Kind     EventKind
	DriverID string
	At       time.Time
}

// State is a point-in-time snapshot of the monitor, exposed on the agent's
// ops endpoint.
type State struct {
	Monitoring      bool      `json:"monitoring"`
	Stopped         bool      `json:"stopped"`
	StoppedAt       time.Time `json:"stoppedAt,omitzero"`
	PromptFired     bool      `json:"promptFired"`
	AutoSwitchFired bool      `json:"autoSwitchFired"`
}

// Monitor is the per-session inactivity state machine. One instance serves
// one driver session; Close disarms it and releases its timers.
type Monitor struct {
	driverID string
	logger   log.Logger

	// Test seams; production values are the regulatory constants above.
	stopDelay   time.Duration
	promptDelay time.Duration

	mu  sync.Mutex
	fsm *fsm.FSM

	stoppedAt       time.Time
	promptFired     bool
	autoSwitchFired bool

	stopTimer   *time.Timer
	promptTimer *time.Timer

	events chan Event
}

// NewMonitor creates a disarmed monitor for one driver.
func NewMonitor(driverID string) *Monitor {
	m := &Monitor{
		driverID:    driverID,
		logger:      log.WithName("inactivity").WithValues("driverID", driverID),
		stopDelay:   stopDelay,
		promptDelay: promptDelay,
		events:      make(chan Event, 16),
	}

	transitions := fsm.Events{
		{Name: eventArm, Src: []string{StateIdle}, Dst: StateMoving},
		{Name: eventDisarm, Src: []string{StateMoving, StateStopped, StatePromptPending, StateAutoSwitched}, Dst: StateIdle},
		{Name: eventStop, Src: []string{StateMoving}, Dst: StateStopped},
		{Name: eventResume, Src: []string{StateStopped, StatePromptPending}, Dst: StateMoving},
		{Name: eventPromptTimeout, Src: []string{StateStopped}, Dst: StatePromptPending},
		{Name: eventSwitchTimeout, Src: []string{StatePromptPending}, Dst: StateAutoSwitched},
		{Name: eventDriverAck, Src: []string{StatePromptPending}, Dst: StateMoving},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateMoving:        fsmutil.WrapEvent(m.actionEnterMoving),
		"enter_" + StateStopped:       fsmutil.WrapEvent(m.actionEnterStopped),
		"leave_" + StateStopped:       fsmutil.WrapEvent(m.actionLeaveStopped),
		"enter_" + StatePromptPending: fsmutil.WrapEvent(m.actionEnterPromptPending),
		"leave_" + StatePromptPending: fsmutil.WrapEvent(m.actionLeavePromptPending),
		"enter_" + StateAutoSwitched:  fsmutil.WrapEvent(m.actionEnterAutoSwitched),
		"enter_" + StateIdle:          fsmutil.WrapEvent(m.actionEnterIdle),
	}

	m.fsm = fsm.NewFSM(StateIdle, transitions, callbacks)
	return m
}

// Events returns the outbound notification channel.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Update feeds one (speed, duty status) sample into the state machine.
// Driving arms monitoring; any other status disarms it and clears all timers
// and flags immediately.
func (m *Monitor) Update(ctx context.Context, speedMph float64, status core.DutyStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status != core.StatusDriving {
		if m.fsm.Current() != StateIdle {
			m.fire(ctx, eventDisarm)
		}
		return
	}

	if m.fsm.Current() == StateIdle {
		m.fire(ctx, eventArm)
	}

	if speedMph < stopSpeedThresholdMph {
		if m.fsm.Current() == StateMoving {
			m.fire(ctx, eventStop)
		}
		return
	}

	if cur := m.fsm.Current(); cur == StateStopped || cur == StatePromptPending {
		m.fire(ctx, eventResume)
	}
}

// HandleUserResponse acknowledges a pending prompt: the auto-switch timer is
// cancelled and a fresh stop-detection cycle can begin without leaving
// driving.
func (m *Monitor) HandleUserResponse(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() == StatePromptPending {
		m.logger.Info("Driver acknowledged inactivity prompt")
		m.fire(ctx, eventDriverAck)
	}
}

// State returns a snapshot of the monitor.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Monitoring:      m.fsm.Current() != StateIdle,
		Stopped:         m.fsm.Current() == StateStopped || m.fsm.Current() == StatePromptPending,
		StoppedAt:       m.stoppedAt,
		PromptFired:     m.promptFired,
		AutoSwitchFired: m.autoSwitchFired,
	}
}

// Close disarms the monitor and closes the events channel.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() != StateIdle {
		m.fire(context.Background(), eventDisarm)
	}
	close(m.events)
}

// fire executes a transition, tolerating the no-transition case.
func (m *Monitor) fire(ctx context.Context, event string) {
	err := m.fsm.Event(ctx, event)
	if err == nil {
		return
	}
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return
	}
	m.logger.Error(err, "Inactivity transition failed", "event", event)
}

// --- transition callbacks (invoked with m.mu held) ---

func (m *Monitor) actionEnterMoving(ctx context.Context, e *fsm.Event) error {
	m.stoppedAt = time.Time{}
	m.promptFired = false
	m.autoSwitchFired = false
	return nil
}

func (m *Monitor) actionEnterStopped(ctx context.Context, e *fsm.Event) error {
	m.stoppedAt = time.Now()
	m.logger.Info("Vehicle stop detected while driving", "promptIn", m.stopDelay)
	m.stopTimer = time.AfterFunc(m.stopDelay, m.onStopTimer)
	return nil
}

func (m *Monitor) actionLeaveStopped(ctx context.Context, e *fsm.Event) error {
	if m.stopTimer != nil {
		m.stopTimer.Stop()
		m.stopTimer = nil
	}
	return nil
}

func (m *Monitor) actionEnterPromptPending(ctx context.Context, e *fsm.Event) error {
	m.promptFired = true
	m.logger.Info("Inactivity prompt due", "autoSwitchIn", m.promptDelay)
	m.emit(EventPrompt)
	m.promptTimer = time.AfterFunc(m.promptDelay, m.onPromptTimer)
	return nil
}

func (m *Monitor) actionLeavePromptPending(ctx context.Context, e *fsm.Event) error {
	if m.promptTimer != nil {
		m.promptTimer.Stop()
		m.promptTimer = nil
	}
	return nil
}

func (m *Monitor) actionEnterAutoSwitched(ctx context.Context, e *fsm.Event) error {
	m.autoSwitchFired = true
	metrics.InactivityAutoSwitchTotal.Inc()
	m.logger.Warn("Inactivity prompt unanswered, requesting auto-switch to on-duty")
	m.emit(EventAutoSwitch)
	return nil
}

func (m *Monitor) actionEnterIdle(ctx context.Context, e *fsm.Event) error {
	m.stoppedAt = time.Time{}
	m.promptFired = false
	m.autoSwitchFired = false
	return nil
}

// emit publishes a notification without blocking the state machine. A full
// buffer drops prompts (consumers that care poll State as well), but never
// the auto-switch: the forced status change must reach the consumer, so it
// evicts the oldest queued event instead. Senders are serialized on m.mu,
// so the eviction loop cannot race another producer.
func (m *Monitor) emit(kind EventKind) {
	ev := Event{Kind: kind, DriverID: m.driverID, At: time.Now()}
	select {
	case m.events <- ev:
		return
	default:
	}

	if kind != EventAutoSwitch {
		m.logger.Warn("Inactivity event buffer full, dropping", "kind", kind)
		return
	}

	for {
		select {
		case old := <-m.events:
			m.logger.Warn("Inactivity event buffer full, evicting oldest", "kind", old.Kind)
		default:
		}
		select {
		case m.events <- ev:
			return
		default:
		}
	}
}

// --- timer callbacks (own goroutines) ---

func (m *Monitor) onStopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() == StateStopped {
		m.fire(context.Background(), eventPromptTimeout)
	}
}

func (m *Monitor) onPromptTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() == StatePromptPending {
		m.fire(context.Background(), eventSwitchTimeout)
	}
}
