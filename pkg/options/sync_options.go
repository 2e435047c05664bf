package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SyncOptions)(nil)

// SyncOptions configures the dual-destination telemetry sync pipeline.
//
// Each destination is independently toggleable; a disabled destination is
// reported as "disabled" by the pipeline rather than attempted.
type SyncOptions struct {
	// Cloud destination: accepts true batch submission.
	CloudEnabled  bool   `json:"cloud-enabled" mapstructure:"cloud-enabled"`
	CloudEndpoint string `json:"cloud-endpoint" mapstructure:"cloud-endpoint"`

	// Fleet destination: accepts only single-record submission; batches are
	// delivered as a sequence of individual requests.
	FleetEnabled  bool   `json:"fleet-enabled" mapstructure:"fleet-enabled"`
	FleetEndpoint string `json:"fleet-endpoint" mapstructure:"fleet-endpoint"`

	// Retry policy, applied per destination.
	MaxAttempts       int           `json:"max-attempts" mapstructure:"max-attempts"`
	BackoffBase       time.Duration `json:"backoff-base" mapstructure:"backoff-base"`
	BackoffMultiplier float64       `json:"backoff-multiplier" mapstructure:"backoff-multiplier"`

	// RequestTimeout bounds every individual HTTP attempt.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`

	// BatchSize caps the number of payloads submitted in one pipeline call.
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
}

// NewSyncOptions creates a SyncOptions object with default parameters.
func NewSyncOptions() *SyncOptions {
	return &SyncOptions{
		CloudEnabled:      true,
		CloudEndpoint:     "https://ingest.trucklink.io/data",
		FleetEnabled:      true,
		FleetEndpoint:     "https://fleet.trucklink.io/api/v1/data",
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2,
		RequestTimeout:    30 * time.Second,
		BatchSize:         50,
	}
}

func (o *SyncOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.MaxAttempts < 1 {
		errors = append(errors, fmt.Errorf("sync.max-attempts must be >= 1, got %d", o.MaxAttempts))
	}
	if o.BackoffBase <= 0 {
		errors = append(errors, fmt.Errorf("sync.backoff-base must be positive, got %v", o.BackoffBase))
	}
	if o.BackoffMultiplier < 1 {
		errors = append(errors, fmt.Errorf("sync.backoff-multiplier must be >= 1, got %v", o.BackoffMultiplier))
	}
	if o.BatchSize < 1 {
		errors = append(errors, fmt.Errorf("sync.batch-size must be >= 1, got %d", o.BatchSize))
	}
	if o.CloudEnabled && o.CloudEndpoint == "" {
		errors = append(errors, fmt.Errorf("sync.cloud-endpoint is required when the cloud destination is enabled"))
	}
	if o.FleetEnabled && o.FleetEndpoint == "" {
		errors = append(errors, fmt.Errorf("sync.fleet-endpoint is required when the fleet destination is enabled"))
	}

	return errors
}

// AddFlags adds flags for SyncOptions to the specified FlagSet.
func (o *SyncOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.CloudEnabled, "sync.cloud-enabled", o.CloudEnabled, "Enable replication to the cloud ingest destination.")
	fs.StringVar(&o.CloudEndpoint, "sync.cloud-endpoint", o.CloudEndpoint, "URL of the cloud ingest endpoint (batch capable).")
	fs.BoolVar(&o.FleetEnabled, "sync.fleet-enabled", o.FleetEnabled, "Enable replication to the fleet backend destination.")
	fs.StringVar(&o.FleetEndpoint, "sync.fleet-endpoint", o.FleetEndpoint, "URL of the fleet backend endpoint (single-record).")
	fs.IntVar(&o.MaxAttempts, "sync.max-attempts", o.MaxAttempts, "Maximum delivery attempts per destination.")
	fs.DurationVar(&o.BackoffBase, "sync.backoff-base", o.BackoffBase, "Base delay before the first retry.")
	fs.Float64Var(&o.BackoffMultiplier, "sync.backoff-multiplier", o.BackoffMultiplier, "Exponential growth factor for retry delays.")
	fs.DurationVar(&o.RequestTimeout, "sync.request-timeout", o.RequestTimeout, "Timeout for each individual HTTP attempt.")
	fs.IntVar(&o.BatchSize, "sync.batch-size", o.BatchSize, "Maximum number of payloads per pipeline submission.")
}
