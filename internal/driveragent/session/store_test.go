package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

func TestStatusStoreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStatusStore()

	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	// A driver with no log is off duty.
	status, err := store.CurrentStatus(ctx, "drv-1")
	if err != nil || status != core.StatusOffDuty {
		t.Fatalf("CurrentStatus = (%v, %v), want offDuty", status, err)
	}

	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatalf("RequestStatusChange: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusOffDuty); err != nil {
		t.Fatalf("RequestStatusChange: %v", err)
	}

	events, err := store.Events(ctx, "drv-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// The first event was closed at the moment the second began.
	if events[0].Status != core.StatusDriving || !events[0].EndTime.Equal(now) {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Status != core.StatusOffDuty || !events[1].Active() {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestStatusStoreSameStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStatusStore()

	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatal(err)
	}
	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatal(err)
	}

	events, _ := store.Events(ctx, "drv-1")
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestStatusStoreRejectsUnknownStatus(t *testing.T) {
	store := NewMemoryStatusStore()
	if err := store.RequestStatusChange(context.Background(), "drv-1", "napping"); err == nil {
		t.Error("expected rejection of unknown duty status")
	}
}

func TestStatusStoreCertifiedEventIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStatusStore()

	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusOffDuty); err != nil {
		t.Fatal(err)
	}

	// Certifying at a cutoff covering the closed event freezes it; the open
	// off-duty event is untouched and can still be closed.
	store.Certify("drv-1", now)

	events, _ := store.Events(ctx, "drv-1")
	if !events[0].Certified {
		t.Fatal("closed event not certified")
	}
	if events[1].Certified {
		t.Fatal("open event must not be certified")
	}

	now = now.Add(time.Hour)
	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatalf("closing an uncertified open event must work: %v", err)
	}

	// Certify the open event too: further changes are refused.
	store.mu.Lock()
	store.logs["drv-1"][len(store.logs["drv-1"])-1].Certified = true
	store.mu.Unlock()

	err := store.RequestStatusChange(ctx, "drv-1", core.StatusOffDuty)
	if !errors.Is(err, ErrCertified) {
		t.Errorf("err = %v, want ErrCertified", err)
	}
}

func TestStatusStoreEventsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStatusStore()

	if err := store.RequestStatusChange(ctx, "drv-1", core.StatusDriving); err != nil {
		t.Fatal(err)
	}

	events, _ := store.Events(ctx, "drv-1")
	events[0].Status = core.StatusOffDuty

	fresh, _ := store.Events(ctx, "drv-1")
	if fresh[0].Status != core.StatusDriving {
		t.Error("mutating the returned slice must not affect the store")
	}
}
