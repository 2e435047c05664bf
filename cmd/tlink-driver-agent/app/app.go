package app

import (
	"fmt"

	"github.com/trucklink-io/trucklink/cmd/tlink-driver-agent/app/options"
	"github.com/trucklink-io/trucklink/pkg/app"
)

const (
	commandName = "tlink-driver-agent"
	commandDesc = `The TruckLink driver agent runs in the cab. It ingests telemetry from
the paired telematics device, tracks hours-of-service clocks and
violations, watches for unattended driving status, and replicates ELD
records to the carrier cloud and the fleet management service.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch the TruckLink driver agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		ctx := app.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
