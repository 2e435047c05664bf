package session

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trucklink-io/trucklink/internal/driveragent/archive"
	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/driveragent/datasync"
	"github.com/trucklink-io/trucklink/internal/driveragent/hos"
	"github.com/trucklink-io/trucklink/internal/driveragent/inactivity"
	"github.com/trucklink-io/trucklink/internal/driveragent/telemetry"
	"github.com/trucklink-io/trucklink/pkg/log"
)

// Session binds one driver shift to one paired device. It owns the
// per-shift components (inactivity monitor, violation detector, frame
// source) and drives frames through normalization, replication, and the
// retention journal until the shift ends or the parent context is
// cancelled.
type Session struct {
	driverID  string
	vehicleID string
	deviceID  string

	store    core.StatusStore
	notifier core.Notifier
	pipeline *datasync.Pipeline
	monitor  *inactivity.Monitor
	detector *hos.Detector
	source   *FrameSource
	archiver archive.Provider
	logger   log.Logger

	cancel context.CancelFunc
	done   chan struct{}
	runErr error

	journalMu  sync.Mutex
	journal    bytes.Buffer
	journalDay time.Time
}

func (s *Session) start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.source.Start(ctx); err != nil {
		s.cancel()
		return err
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.runErr = s.run(ctx)
		if s.runErr != nil {
			s.logger.Error(s.runErr, "Session terminated")
		}
	}()
	return nil
}

func (s *Session) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.detector.Run(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case frame, ok := <-s.source.Frames():
				if !ok {
					return nil
				}
				s.handleFrame(ctx, frame)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-s.monitor.Events():
				if !ok {
					return nil
				}
				s.handleMonitorEvent(ctx, ev)
			}
		}
	})

	return g.Wait()
}

func (s *Session) handleFrame(ctx context.Context, frame core.RawFrame) {
	payload := telemetry.Normalize(frame, telemetry.Context{
		DriverID:  s.driverID,
		VehicleID: s.vehicleID,
		DeviceID:  s.deviceID,
	})

	if speed, ok := telemetry.SpeedSample(payload); ok {
		status, err := s.store.CurrentStatus(ctx, s.driverID)
		if err != nil {
			s.logger.Error(err, "Reading duty status for movement sample")
		} else {
			s.monitor.Update(ctx, speed, status)
		}
	}

	if payload.DataType == core.DataTypeHosStatus {
		s.applyDeviceStatus(ctx, payload)
	}

	results, err := s.pipeline.Send(ctx, payload)
	if err != nil {
		s.logger.Error(err, "Replication rejected payload", "dataType", payload.DataType)
	} else {
		for _, r := range results {
			if r.Err != nil {
				s.logger.Warn("Replication failed", "destination", r.Destination, "error", r.Err.Error())
			}
		}
	}

	s.appendJournal(payload)
}

// applyDeviceStatus mirrors a duty-status change reported by the device
// head unit into the status log.
func (s *Session) applyDeviceStatus(ctx context.Context, payload core.CanonicalPayload) {
	raw, ok := payload.Fields["duty_status"].(string)
	if !ok {
		return
	}
	status := core.DutyStatus(raw)
	if !status.Valid() {
		s.logger.Warn("Device reported unknown duty status", "status", raw)
		return
	}

	current, err := s.store.CurrentStatus(ctx, s.driverID)
	if err != nil || current == status {
		return
	}
	if err := s.store.RequestStatusChange(ctx, s.driverID, status); err != nil {
		s.logger.Error(err, "Applying device duty status", "status", status)
	}
}

func (s *Session) handleMonitorEvent(ctx context.Context, ev inactivity.Event) {
	switch ev.Kind {
	case inactivity.EventPrompt:
		if err := s.notifier.SendInactivityPrompt(ctx, s.driverID); err != nil {
			s.logger.Error(err, "Sending inactivity prompt")
		}
	case inactivity.EventAutoSwitch:
		if err := s.store.RequestStatusChange(ctx, s.driverID, core.StatusOnDuty); err != nil {
			s.logger.Error(err, "Auto-switching duty status")
		} else {
			s.logger.Info("Driver auto-switched to on-duty after inactivity")
		}
	}
}

// HandleUserResponse forwards a driver acknowledgement to the monitor.
func (s *Session) HandleUserResponse(ctx context.Context) {
	s.monitor.HandleUserResponse(ctx)
}

// MonitorState reports the inactivity monitor snapshot.
func (s *Session) MonitorState() inactivity.State {
	return s.monitor.State()
}

func (s *Session) appendJournal(payload core.CanonicalPayload) {
	// Marshal through the pointer so the canonical encoding applies; the
	// value path would fall back to default struct encoding.
	line, err := json.Marshal(&payload)
	if err != nil {
		return
	}

	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	day := payload.Timestamp.UTC().Truncate(24 * time.Hour)
	if !s.journalDay.IsZero() && !day.Equal(s.journalDay) {
		s.flushJournalLocked()
	}
	s.journalDay = day
	s.journal.Write(line)
	s.journal.WriteByte('\n')
}

// flushJournalLocked uploads and resets the buffered journal. Callers hold
// journalMu.
func (s *Session) flushJournalLocked() {
	if s.archiver == nil || s.journal.Len() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data := make([]byte, s.journal.Len())
	copy(data, s.journal.Bytes())
	if err := s.archiver.UploadJournal(ctx, s.driverID, s.journalDay, data); err != nil {
		s.logger.Error(err, "Uploading record journal", "day", s.journalDay.Format("2006-01-02"))
		return
	}
	s.journal.Reset()
}

// Close ends the shift: stops ingestion, tears down the per-shift
// components, and flushes the retention journal.
func (s *Session) Close() error {
	s.cancel()
	<-s.done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.source.Stop(ctx)
	s.monitor.Close()

	s.journalMu.Lock()
	s.flushJournalLocked()
	s.journalMu.Unlock()

	return s.runErr
}
