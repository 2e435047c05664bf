package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

// ErrCertified is returned when a status change would touch a certified event.
var ErrCertified = errors.New("active event is certified and cannot be closed")

var _ core.StatusStore = (*MemoryStatusStore)(nil)

// MemoryStatusStore is an append-only in-memory duty-status log. It backs
// the agent when no fleet status service is configured and carries the
// store-side invariants the core relies on: wall-clock ordering and
// certified-event immutability.
type MemoryStatusStore struct {
	mu   sync.Mutex
	logs map[string][]core.StatusEvent
	now  func() time.Time
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{
		logs: make(map[string][]core.StatusEvent),
		now:  time.Now,
	}
}

func (s *MemoryStatusStore) CurrentStatus(ctx context.Context, driverID string) (core.DutyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.logs[driverID]
	if len(events) == 0 {
		// A driver with no log has never gone on duty.
		return core.StatusOffDuty, nil
	}
	return events[len(events)-1].Status, nil
}

func (s *MemoryStatusStore) Events(ctx context.Context, driverID string) ([]core.StatusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.logs[driverID]
	out := make([]core.StatusEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStatusStore) RequestStatusChange(ctx context.Context, driverID string, status core.DutyStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown duty status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	events := s.logs[driverID]

	if n := len(events); n > 0 && events[n-1].Active() {
		if events[n-1].Status == status {
			return nil
		}
		if events[n-1].Certified {
			return ErrCertified
		}
		events[n-1].EndTime = now
	}

	s.logs[driverID] = append(events, core.StatusEvent{
		DriverID:  driverID,
		Status:    status,
		StartTime: now,
	})
	return nil
}

// Certify marks every closed event ending at or before the cutoff as
// certified. Certified events are immutable from then on.
func (s *MemoryStatusStore) Certify(driverID string, cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.logs[driverID]
	for i := range events {
		if !events[i].Active() && !events[i].EndTime.After(cutoff) {
			events[i].Certified = true
		}
	}
}
