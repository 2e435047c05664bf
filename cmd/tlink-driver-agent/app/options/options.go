package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/trucklink-io/trucklink/internal/driveragent"
	"github.com/trucklink-io/trucklink/pkg/app"
	"github.com/trucklink-io/trucklink/pkg/log"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// AgentOptions aggregates the full flag surface of tlink-driver-agent.
type AgentOptions struct {
	AgentOptions *options.AgentOptions `json:"agent" mapstructure:"agent"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	SyncOptions  *options.SyncOptions  `json:"sync" mapstructure:"sync"`
	HosOptions   *options.HosOptions   `json:"hos" mapstructure:"hos"`
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	S3Options    *options.S3Options    `json:"s3" mapstructure:"s3"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		AgentOptions: options.NewAgentOptions(),
		MqttOptions:  options.NewMqttOptions(),
		SyncOptions:  options.NewSyncOptions(),
		HosOptions:   options.NewHosOptions(),
		HttpOptions:  options.NewHttpOptions(),
		S3Options:    options.NewS3Options(),
		Log:          log.NewOptions(),
	}
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.SyncOptions.AddFlags(fss.FlagSet("sync"))
	o.HosOptions.AddFlags(fss.FlagSet("hos"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.SyncOptions.Validate()...)
	errs = append(errs, o.HosOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*driveragent.Config, error) {
	log.Init(o.Log)

	return &driveragent.Config{
		AgentOptions: o.AgentOptions,
		MqttOptions:  o.MqttOptions,
		SyncOptions:  o.SyncOptions,
		HosOptions:   o.HosOptions,
		HttpOptions:  o.HttpOptions,
		S3Options:    o.S3Options,
	}, nil
}
