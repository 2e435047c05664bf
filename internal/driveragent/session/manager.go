package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/archive"
	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/driveragent/datasync"
	"github.com/trucklink-io/trucklink/internal/driveragent/hos"
	"github.com/trucklink-io/trucklink/internal/driveragent/inactivity"
	"github.com/trucklink-io/trucklink/pkg/log"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	mqtttopic "github.com/trucklink-io/trucklink/pkg/mqtt/topic"
)

// Deps carries the shared components a Manager hands to every session.
type Deps struct {
	Store    core.StatusStore
	Notifier core.Notifier
	Pipeline *datasync.Pipeline
	Client   pkgmqtt.Client
	Topics   *mqtttopic.Builder
	Archiver archive.Provider

	Limits       hos.Limits
	PollInterval time.Duration
}

// Manager tracks the active driver sessions. Each shift gets fresh
// detector and monitor instances; only the transport client, the status
// store, and the replication pipeline are shared.
type Manager struct {
	deps   Deps
	logger log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		logger:   log.WithName("sessions"),
		sessions: make(map[string]*Session),
	}
}

// StartSession begins a shift for the driver on the given vehicle and
// paired device.
func (m *Manager) StartSession(ctx context.Context, driverID, vehicleID, deviceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[driverID]; ok {
		return nil, fmt.Errorf("driver %s already has an active session", driverID)
	}

	s := &Session{
		driverID:  driverID,
		vehicleID: vehicleID,
		deviceID:  deviceID,
		store:     m.deps.Store,
		notifier:  m.deps.Notifier,
		pipeline:  m.deps.Pipeline,
		monitor:   inactivity.NewMonitor(driverID),
		detector:  hos.NewDetector(driverID, m.deps.Limits, m.deps.PollInterval, m.deps.Store, m.deps.Notifier),
		source:    NewFrameSource(deviceID, m.deps.Client, m.deps.Topics),
		archiver:  m.deps.Archiver,
		logger:    log.WithName("session").WithValues("driverID", driverID, "deviceID", deviceID),
	}

	if err := s.start(ctx); err != nil {
		return nil, err
	}

	m.sessions[driverID] = s
	m.logger.Info("Session started", "driverID", driverID, "vehicleID", vehicleID, "deviceID", deviceID)
	return s, nil
}

// Session returns the active session for a driver, if any.
func (m *Manager) Session(driverID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[driverID]
	return s, ok
}

// EndSession closes a driver's session and removes it from the manager.
func (m *Manager) EndSession(driverID string) error {
	m.mu.Lock()
	s, ok := m.sessions[driverID]
	delete(m.sessions, driverID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("driver %s has no active session", driverID)
	}

	err := s.Close()
	m.logger.Info("Session ended", "driverID", driverID)
	return err
}

// Clocks computes the driver's current HOS clocks from the status log.
func (m *Manager) Clocks(ctx context.Context, driverID string) (hos.Clocks, error) {
	events, err := m.deps.Store.Events(ctx, driverID)
	if err != nil {
		return hos.Clocks{}, err
	}
	return hos.ComputeClocks(events, m.deps.Limits, time.Now()), nil
}

// Close ends every active session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Error(err, "Closing session", "driverID", s.driverID)
		}
	}
}
