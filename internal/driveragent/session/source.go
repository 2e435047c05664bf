package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/metrics"
	"github.com/trucklink-io/trucklink/internal/pkg/mqtt/paths"
	"github.com/trucklink-io/trucklink/pkg/log"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	mqtttopic "github.com/trucklink-io/trucklink/pkg/mqtt/topic"
)

// FrameSource delivers raw telemetry frames for one paired device.
//
// The transport gateway publishes device lifecycle events alongside the
// frames; ingestion is gated on the connected event, so frames observed
// before pairing completes are discarded.
type FrameSource struct {
	deviceID string
	client   pkgmqtt.Client
	topics   *mqtttopic.Builder
	logger   log.Logger

	mu        sync.Mutex
	connected bool

	frames chan core.RawFrame
}

func NewFrameSource(deviceID string, client pkgmqtt.Client, topics *mqtttopic.Builder) *FrameSource {
	return &FrameSource{
		deviceID: deviceID,
		client:   client,
		topics:   topics,
		logger:   log.WithName("source").WithValues("deviceID", deviceID),
		frames:   make(chan core.RawFrame, 64),
	}
}

// Start subscribes to the device's lifecycle and frame topics.
func (s *FrameSource) Start(ctx context.Context) error {
	deviceTopic := s.topics.Build(paths.Device, s.deviceID)
	if err := s.client.Subscribe(ctx, deviceTopic, 1, s.handleDeviceEvent); err != nil {
		return err
	}

	frameTopic := s.topics.Build(paths.Frames, s.deviceID)
	return s.client.Subscribe(ctx, frameTopic, 1, s.handleFrame)
}

// Frames returns the gated frame channel.
func (s *FrameSource) Frames() <-chan core.RawFrame {
	return s.frames
}

// Stop unsubscribes from the device's topics.
func (s *FrameSource) Stop(ctx context.Context) {
	_ = s.client.Unsubscribe(ctx, s.topics.Build(paths.Device, s.deviceID))
	_ = s.client.Unsubscribe(ctx, s.topics.Build(paths.Frames, s.deviceID))
}

func (s *FrameSource) handleDeviceEvent(ctx context.Context, topic string, payload []byte) {
	var ev core.DeviceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Error(err, "Malformed device event")
		return
	}

	switch ev.Kind {
	case core.DeviceScanned:
		s.logger.Info("Device discovered")
	case core.DeviceConnected:
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		s.logger.Info("Device connected, telemetry ingestion enabled")
	case core.DeviceConnectFailure:
		metrics.DeviceConnectFailuresTotal.Inc()
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.logger.Warn("Device connect failure", "reason", ev.Reason)
	default:
		s.logger.Debug("Unknown device event", "kind", ev.Kind)
	}
}

func (s *FrameSource) handleFrame(ctx context.Context, topic string, payload []byte) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		s.logger.Debug("Dropping frame before device connect")
		return
	}

	var frame core.RawFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.logger.Error(err, "Malformed telemetry frame")
		return
	}

	select {
	case s.frames <- frame:
	default:
		s.logger.Warn("Frame buffer full, dropping", "dataType", frame.DataType)
	}
}
