package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AgentOptions)(nil)

// AgentOptions identifies the driver, vehicle, and paired device for an
// auto-started session. All three are optional; sessions can also be
// started through the ops API after boot.
type AgentOptions struct {
	// DriverID of the driver to start a session for at boot.
	DriverID string `json:"driver-id" mapstructure:"driver-id"`

	// VehicleID of the vehicle the agent runs on.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	// DeviceID of the paired telematics device.
	DeviceID string `json:"device-id" mapstructure:"device-id"`
}

// NewAgentOptions creates an AgentOptions object with default parameters.
func NewAgentOptions() *AgentOptions {
	return &AgentOptions{}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *AgentOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	// Identity is all-or-nothing: a partial triple cannot start a session.
	set := 0
	for _, v := range []string{o.DriverID, o.VehicleID, o.DeviceID} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		errors = append(errors, fmt.Errorf("agent.driver-id, agent.vehicle-id and agent.device-id must be set together"))
	}

	return errors
}

// AutoStart reports whether the options carry a complete session identity.
func (o *AgentOptions) AutoStart() bool {
	return o.DriverID != "" && o.VehicleID != "" && o.DeviceID != ""
}

// AddFlags adds flags related to session identity to the specified FlagSet.
func (o *AgentOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DriverID, "agent.driver-id", o.DriverID, "Driver to start a session for at boot.")
	fs.StringVar(&o.VehicleID, "agent.vehicle-id", o.VehicleID, "Vehicle the agent runs on.")
	fs.StringVar(&o.DeviceID, "agent.device-id", o.DeviceID, "Paired telematics device identifier.")
}
