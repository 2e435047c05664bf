package driveragent

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trucklink-io/trucklink/internal/driveragent/archive"
	"github.com/trucklink-io/trucklink/internal/driveragent/session"
	"github.com/trucklink-io/trucklink/internal/pkg/mqtt/paths"
	"github.com/trucklink-io/trucklink/pkg/log"
	pkgmqtt "github.com/trucklink-io/trucklink/pkg/mqtt"
	mqtttopic "github.com/trucklink-io/trucklink/pkg/mqtt/topic"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// Agent is the in-cab driver agent. It owns the broker connection, the
// session manager, and the local ops API, and runs until its context is
// cancelled.
type Agent struct {
	identity *options.AgentOptions
	client   pkgmqtt.Client
	topics   *mqtttopic.Builder
	notifier *session.MQTTNotifier
	archiver archive.Provider
	sessions *session.Manager
	ops      *opsServer
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting tlink-driver-agent")

	if err := a.client.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.client.Disconnect(shutdownCtx)
	}()
	defer a.notifier.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.client.AwaitConnection(connectCtx); err != nil {
		return err
	}
	log.Info("Connected to broker")

	if a.archiver != nil {
		if err := a.archiver.CheckBucket(ctx); err != nil {
			return err
		}
	}

	if a.identity.AutoStart() {
		if _, err := a.sessions.StartSession(ctx, a.identity.DriverID, a.identity.VehicleID, a.identity.DeviceID); err != nil {
			return err
		}
	}
	defer a.sessions.Close()

	a.publishOnline(ctx, true)
	defer a.publishOnline(context.Background(), false)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.ops.start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Agent shutting down")
		return nil
	})

	return g.Wait()
}

// publishOnline reports agent presence on the fleet plane, retained so
// late subscribers see the current state. The matching offline will
// covers unexpected disconnects.
func (a *Agent) publishOnline(ctx context.Context, online bool) {
	if a.identity.VehicleID == "" {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"vehicleId": a.identity.VehicleID,
		"online":    online,
	})

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.client.Publish(pubCtx, a.topics.Build(paths.Online, a.identity.VehicleID), 1, true, payload); err != nil {
		log.Error(err, "Publishing online status", "online", online)
	}
}
