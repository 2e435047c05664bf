package hos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

type fakeStore struct {
	mu     sync.Mutex
	status core.DutyStatus
	events []core.StatusEvent
}

func (s *fakeStore) CurrentStatus(ctx context.Context, driverID string) (core.DutyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *fakeStore) Events(ctx context.Context, driverID string) ([]core.StatusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, nil
}

func (s *fakeStore) RequestStatusChange(ctx context.Context, driverID string, status core.DutyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []core.ViolationAlert
}

func (n *recordingNotifier) SendViolationAlert(ctx context.Context, alert core.ViolationAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) SendInactivityPrompt(ctx context.Context, driverID string) error {
	return nil
}

func (n *recordingNotifier) recorded() []core.ViolationAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.ViolationAlert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

// newTestDetector pins the detector clock to a fixed instant so remaining
// values are exact.
func newTestDetector(store *fakeStore, notifier *recordingNotifier, asOf time.Time) *Detector {
	d := NewDetector("drv-1", testLimits, time.Minute, store, notifier)
	d.now = func() time.Time { return asOf }
	return d
}

func TestDetectorFiresOncePerBucket(t *testing.T) {
	asOf := base.Add(10*time.Hour + 48*time.Minute)
	store := &fakeStore{
		status: core.StatusDriving,
		events: []core.StatusEvent{
			{DriverID: "drv-1", Status: core.StatusDriving, StartTime: base},
		},
	}
	notifier := &recordingNotifier{}
	d := newTestDetector(store, notifier, asOf)

	// Remaining driving time is 12 minutes: inside the 15m bucket.
	for i := 0; i < 5; i++ {
		d.evaluate(context.Background())
	}

	alerts := notifier.recorded()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1: %+v", len(alerts), alerts)
	}
	if alerts[0].Kind != KindDriving || alerts[0].ThresholdKey != "11_hour:15m" {
		t.Errorf("unexpected alert %+v", alerts[0])
	}
	if alerts[0].RemainingAtAlert != 12*time.Minute {
		t.Errorf("RemainingAtAlert = %v, want 12m", alerts[0].RemainingAtAlert)
	}
}

func TestDetectorPicksTightestBucket(t *testing.T) {
	asOf := base.Add(10*time.Hour + 57*time.Minute)
	store := &fakeStore{
		status: core.StatusDriving,
		events: []core.StatusEvent{
			{DriverID: "drv-1", Status: core.StatusDriving, StartTime: base},
		},
	}
	notifier := &recordingNotifier{}
	d := newTestDetector(store, notifier, asOf)

	d.evaluate(context.Background())

	alerts := notifier.recorded()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].ThresholdKey != "11_hour:5m" {
		t.Errorf("ThresholdKey = %q, want 11_hour:5m", alerts[0].ThresholdKey)
	}
}

func TestDetectorTighterBucketStillFires(t *testing.T) {
	store := &fakeStore{
		status: core.StatusDriving,
		events: []core.StatusEvent{
			{DriverID: "drv-1", Status: core.StatusDriving, StartTime: base},
		},
	}
	notifier := &recordingNotifier{}

	// 20 minutes remaining: fires the 30m bucket.
	d := newTestDetector(store, notifier, base.Add(10*time.Hour+40*time.Minute))
	d.evaluate(context.Background())

	// Clock advances to 10 minutes remaining: the 15m bucket is new.
	d.now = func() time.Time { return base.Add(10*time.Hour + 50*time.Minute) }
	d.evaluate(context.Background())

	alerts := notifier.recorded()
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2: %+v", len(alerts), alerts)
	}
	if alerts[0].ThresholdKey != "11_hour:30m" || alerts[1].ThresholdKey != "11_hour:15m" {
		t.Errorf("unexpected keys %q, %q", alerts[0].ThresholdKey, alerts[1].ThresholdKey)
	}
}

func TestDetectorResetsOnRest(t *testing.T) {
	store := &fakeStore{
		status: core.StatusDriving,
		events: []core.StatusEvent{
			{DriverID: "drv-1", Status: core.StatusDriving, StartTime: base},
		},
	}
	notifier := &recordingNotifier{}
	d := newTestDetector(store, notifier, base.Add(10*time.Hour+48*time.Minute))

	d.evaluate(context.Background())
	if len(notifier.recorded()) != 1 {
		t.Fatalf("expected the first alert to fire")
	}

	// A rest status ends the duty period and re-arms consumed buckets.
	store.mu.Lock()
	store.status = core.StatusOffDuty
	store.mu.Unlock()
	d.evaluate(context.Background())

	store.mu.Lock()
	store.status = core.StatusDriving
	store.mu.Unlock()
	d.evaluate(context.Background())

	if got := len(notifier.recorded()); got != 2 {
		t.Errorf("got %d alerts after rest reset, want 2", got)
	}
}

func TestDetectorSilentOutsideAlertingStatuses(t *testing.T) {
	for _, status := range []core.DutyStatus{core.StatusPersonalConveyance, core.StatusYardMove} {
		store := &fakeStore{
			status: status,
			events: []core.StatusEvent{
				{DriverID: "drv-1", Status: core.StatusDriving, StartTime: base},
			},
		}
		notifier := &recordingNotifier{}
		d := newTestDetector(store, notifier, base.Add(12*time.Hour))

		d.evaluate(context.Background())

		if got := len(notifier.recorded()); got != 0 {
			t.Errorf("status %s: got %d alerts, want none", status, got)
		}
	}
}
