package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/mqtt/paths"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	mqtttopic "github.com/trucklink-io/trucklink/pkg/mqtt/topic"
	"github.com/trucklink-io/trucklink/pkg/options"
)

var _ core.Notifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes driver-facing notifications on the fleet plane.
// It holds a dedicated egress client so alert publishing never contends with
// frame ingestion.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *mqtttopic.Builder
}

func NewMQTTNotifier(opts *options.MqttOptions) (*MQTTNotifier, error) {
	cfg := opts.ToClientConfig()
	cfg.ClientID = cfg.ClientID + "-notifier"
	cfg.CleanStart = true

	client, err := pkgmqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Start(context.Background()); err != nil {
		return nil, err
	}

	return &MQTTNotifier{
		client: client,
		topics: mqtttopic.NewBuilder(opts.TopicRoot),
	}, nil
}

func (n *MQTTNotifier) SendViolationAlert(ctx context.Context, alert core.ViolationAlert) error {
	payload, err := json.Marshal(struct {
		core.ViolationAlert
		RemainingMinutes int64 `json:"remainingMinutes"`
	}{alert, int64(alert.RemainingAtAlert.Minutes())})
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, n.topics.Build(paths.Alerts, alert.DriverID), 1, false, payload)
}

func (n *MQTTNotifier) SendInactivityPrompt(ctx context.Context, driverID string) error {
	payload, err := json.Marshal(map[string]any{
		"driverId":  driverID,
		"prompt":    "confirm_driving",
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, n.topics.Build(paths.Prompts, driverID), 1, false, payload)
}

// Close disconnects the egress client.
func (n *MQTTNotifier) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.client.Disconnect(ctx)
}
