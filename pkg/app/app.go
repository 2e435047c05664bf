package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/trucklink-io/trucklink/pkg/log"
)

// RunFunc defines the application's startup callback function.
type RunFunc func() error

// NamedFlagSetOptions abstracts the full option set of an application
// binary: flag registration grouped into named sets, completion of
// derived values, and validation.
type NamedFlagSetOptions interface {
	Flags() cliflag.NamedFlagSets
	Complete() error
	Validate() error
}

// App is the main structure of a cli application. It is recommended that
// an app be created with the NewApp() function.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	silence     bool
	noConfig    bool
	args        cobra.PositionalArgs
	cmd         *cobra.Command
}

// Option defines optional parameters for initializing the application
// structure.
type Option func(*App)

// WithOptions opens the application's function to read from the command
// line or read parameters from the configuration file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc is used to set the application startup callback function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDescription is used to set the description of the application.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithSilence sets the application to silent mode, in which the startup
// information is not printed in the console.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// WithNoConfig set the application does not provide config flag.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// WithDefaultValidArgs set default validation function to valid
// non-flag arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = cobra.NoArgs
	}
}

// NewApp creates a new application instance based on the given
// application name, short description, and other options.
func NewApp(name string, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()

	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		for _, f := range namedFlagSets.FlagSets {
			cmd.Flags().AddFlagSet(f)
		}
	}

	if !a.noConfig {
		addConfigFlag(a.name, namedFlagSets.FlagSet("global"))
	}
	cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))

	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, 120)

	cmd.RunE = a.runCommand
	a.cmd = cmd
}

// Run is used to launch the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns cobra command instance inside the application.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if !a.noConfig {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if a.options != nil {
			if err := viper.Unmarshal(a.options); err != nil {
				return err
			}
		}
	}

	if !a.silence {
		log.Info("Starting application", "name", a.name)
	}

	if a.options != nil {
		if err := a.applyOptionRules(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}

	return nil
}

func (a *App) applyOptionRules() error {
	if err := a.options.Complete(); err != nil {
		return err
	}

	return a.options.Validate()
}
