package driveragent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/trucklink-io/trucklink/internal/driveragent/archive"
	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/driveragent/datasync"
	"github.com/trucklink-io/trucklink/internal/driveragent/hos"
	"github.com/trucklink-io/trucklink/internal/driveragent/session"
	"github.com/trucklink-io/trucklink/internal/pkg/mqtt/paths"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	mqtttopic "github.com/trucklink-io/trucklink/pkg/mqtt/topic"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// Environment variables holding the destination bearer tokens. They are
// re-read on every delivery attempt so a rotated token is picked up
// mid-retry without restarting the agent.
const (
	envCloudToken = "TLINK_CLOUD_TOKEN"
	envFleetToken = "TLINK_FLEET_TOKEN"
)

// Config is the fully resolved driver-agent configuration.
type Config struct {
	AgentOptions *options.AgentOptions
	MqttOptions  *options.MqttOptions
	SyncOptions  *options.SyncOptions
	HosOptions   *options.HosOptions
	HttpOptions  *options.HttpOptions
	S3Options    *options.S3Options
}

// NewAgent assembles the agent from the resolved configuration.
func (cfg *Config) NewAgent() (*Agent, error) {
	client, topics, err := cfg.initMqttClientAndTopicBuilder()
	if err != nil {
		return nil, fmt.Errorf("init mqtt client: %w", err)
	}

	notifier, err := session.NewMQTTNotifier(cfg.MqttOptions)
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	var archiver archive.Provider
	if cfg.S3Options.Enabled {
		archiver, err = archive.NewMinIOProvider(cfg.S3Options)
		if err != nil {
			return nil, fmt.Errorf("init record retention: %w", err)
		}
	}

	store := session.NewMemoryStatusStore()
	pipeline := datasync.New(cfg.SyncOptions, envTokenProvider(envCloudToken), envTokenProvider(envFleetToken))

	sessions := session.NewManager(session.Deps{
		Store:        store,
		Notifier:     notifier,
		Pipeline:     pipeline,
		Client:       client,
		Topics:       topics,
		Archiver:     archiver,
		Limits:       hos.LimitsFromOptions(cfg.HosOptions),
		PollInterval: cfg.HosOptions.PollInterval,
	})

	return &Agent{
		identity: cfg.AgentOptions,
		client:   client,
		topics:   topics,
		notifier: notifier,
		archiver: archiver,
		sessions: sessions,
		ops:      newOpsServer(cfg.HttpOptions, sessions, store, client),
	}, nil
}

func (cfg *Config) initMqttClientAndTopicBuilder() (pkgmqtt.Client, *mqtttopic.Builder, error) {
	topics := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("tlink-agent-%s", cfg.AgentOptions.VehicleID)
	}

	// The fleet plane keys presence off the vehicle. No timestamp in the
	// will payload; the broker's reception time is authoritative.
	if cfg.AgentOptions.VehicleID != "" {
		offline, _ := json.Marshal(map[string]any{
			"vehicleId": cfg.AgentOptions.VehicleID,
			"online":    false,
			"reason":    "UnexpectedDisconnect",
		})
		mqttConfig.WillTopic = topics.Build(paths.Online, cfg.AgentOptions.VehicleID)
		mqttConfig.WillPayload = offline
		mqttConfig.WillQoS = 1
		mqttConfig.WillRetain = true
	}

	client, err := pkgmqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}

	return client, topics, nil
}

// envTokenProvider resolves a bearer token from the environment on every
// call.
func envTokenProvider(name string) core.TokenProvider {
	return core.TokenProviderFunc(func(ctx context.Context) (string, error) {
		token := os.Getenv(name)
		if token == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return token, nil
	})
}
