package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HosOptions)(nil)

// HosOptions carries the carrier-configured Hours-of-Service limits.
//
// Defaults are the FMCSA property-carrying limits: 11h driving, 14h shift,
// 70h over 8 days. Carriers on a 60h/7-day cycle override cycle-limit and
// cycle-days. The inactivity timing (5 min stop, 1 min prompt, 5 mph) is
// fixed by regulation and intentionally absent here.
type HosOptions struct {
	DrivingLimit time.Duration `json:"driving-limit" mapstructure:"driving-limit"`
	ShiftLimit   time.Duration `json:"shift-limit" mapstructure:"shift-limit"`
	CycleLimit   time.Duration `json:"cycle-limit" mapstructure:"cycle-limit"`
	CycleDays    int           `json:"cycle-days" mapstructure:"cycle-days"`

	// RestartBreak is the minimum continuous off-duty span that resets the
	// cycle window (34-hour restart).
	RestartBreak time.Duration `json:"restart-break" mapstructure:"restart-break"`

	// ShiftBreak is the minimum continuous off-duty span that starts a new
	// driving/shift window (10-hour break).
	ShiftBreak time.Duration `json:"shift-break" mapstructure:"shift-break"`

	// PollInterval is how often the violation detector re-evaluates clocks.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
}

// NewHosOptions creates a HosOptions object with FMCSA default limits.
func NewHosOptions() *HosOptions {
	return &HosOptions{
		DrivingLimit: 11 * time.Hour,
		ShiftLimit:   14 * time.Hour,
		CycleLimit:   70 * time.Hour,
		CycleDays:    8,
		RestartBreak: 34 * time.Hour,
		ShiftBreak:   10 * time.Hour,
		PollInterval: time.Minute,
	}
}

func (o *HosOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.CycleDays != 7 && o.CycleDays != 8 {
		errors = append(errors, fmt.Errorf("hos.cycle-days must be 7 or 8, got %d", o.CycleDays))
	}
	if o.PollInterval <= 0 {
		errors = append(errors, fmt.Errorf("hos.poll-interval must be positive, got %v", o.PollInterval))
	}

	return errors
}

// AddFlags adds flags for HosOptions to the specified FlagSet.
func (o *HosOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.DrivingLimit, "hos.driving-limit", o.DrivingLimit, "Maximum driving time per duty period.")
	fs.DurationVar(&o.ShiftLimit, "hos.shift-limit", o.ShiftLimit, "Maximum shift window per duty period.")
	fs.DurationVar(&o.CycleLimit, "hos.cycle-limit", o.CycleLimit, "Maximum on-duty time within the rolling cycle window.")
	fs.IntVar(&o.CycleDays, "hos.cycle-days", o.CycleDays, "Length of the rolling cycle window in days (7 or 8).")
	fs.DurationVar(&o.RestartBreak, "hos.restart-break", o.RestartBreak, "Continuous off-duty span that restarts the cycle window.")
	fs.DurationVar(&o.ShiftBreak, "hos.shift-break", o.ShiftBreak, "Continuous off-duty span that starts a new driving/shift window.")
	fs.DurationVar(&o.PollInterval, "hos.poll-interval", o.PollInterval, "Interval between violation detector evaluations.")
}
