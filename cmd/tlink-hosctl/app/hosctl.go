package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// hosctl is a thin operator CLI over the driver agent's local ops API.

type rootOptions struct {
	server  string
	driver  string
	timeout time.Duration
}

func NewHosctlCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tlink-hosctl",
		Short:         "Inspect and control a running TruckLink driver agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", "http://127.0.0.1:8086", "Ops API address of the driver agent.")
	cmd.PersistentFlags().StringVarP(&opts.driver, "driver", "d", "", "Driver identifier.")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout.")

	cmd.AddCommand(
		newClocksCommand(opts),
		newStatusCommand(opts),
		newInactivityCommand(opts),
		newAckCommand(opts),
		newSessionCommand(opts),
	)

	return cmd
}

func newClocksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clocks",
		Short: "Show the driver's remaining HOS clocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" {
				return fmt.Errorf("--driver is required")
			}

			var clocks struct {
				DrivingRemaining time.Duration `json:"drivingRemaining"`
				ShiftRemaining   time.Duration `json:"shiftRemaining"`
				CycleRemaining   time.Duration `json:"cycleRemaining"`
			}
			if err := opts.get(fmt.Sprintf("/v1/drivers/%s/clocks", opts.driver), &clocks); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("CLOCK", "REMAINING")
			table.AddRow("Driving (11h)", formatClock(clocks.DrivingRemaining))
			table.AddRow("Shift (14h)", formatClock(clocks.ShiftRemaining))
			table.AddRow("Cycle", formatClock(clocks.CycleRemaining))
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <duty-status>",
		Short: "Request a duty status change (offDuty|onDuty|driving|sleeperBerth|personalConveyance|yardMove)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" {
				return fmt.Errorf("--driver is required")
			}
			body := map[string]string{"status": args[0]}
			return opts.post(fmt.Sprintf("/v1/drivers/%s/status", opts.driver), body)
		},
	}
}

func newInactivityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inactivity",
		Short: "Show the inactivity monitor state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" {
				return fmt.Errorf("--driver is required")
			}

			var state struct {
				Monitoring      bool      `json:"monitoring"`
				Stopped         bool      `json:"stopped"`
				StoppedAt       time.Time `json:"stoppedAt"`
				PromptFired     bool      `json:"promptFired"`
				AutoSwitchFired bool      `json:"autoSwitchFired"`
			}
			if err := opts.get(fmt.Sprintf("/v1/drivers/%s/inactivity", opts.driver), &state); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("MONITORING", fmt.Sprintf("%t", state.Monitoring))
			table.AddRow("STOPPED", fmt.Sprintf("%t", state.Stopped))
			if !state.StoppedAt.IsZero() {
				table.AddRow("STOPPED AT", state.StoppedAt.Format(time.RFC3339))
			}
			table.AddRow("PROMPT FIRED", fmt.Sprintf("%t", state.PromptFired))
			table.AddRow("AUTO-SWITCHED", fmt.Sprintf("%t", state.AutoSwitchFired))
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newAckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge an inactivity prompt on the driver's behalf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" {
				return fmt.Errorf("--driver is required")
			}
			return opts.post(fmt.Sprintf("/v1/drivers/%s/inactivity/ack", opts.driver), nil)
		},
	}
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	var vehicleID, deviceID string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage driver sessions",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session for the driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" || vehicleID == "" || deviceID == "" {
				return fmt.Errorf("--driver, --vehicle and --device are required")
			}
			body := map[string]string{
				"driverId":  opts.driver,
				"vehicleId": vehicleID,
				"deviceId":  deviceID,
			}
			return opts.post("/v1/sessions", body)
		},
	}
	start.Flags().StringVar(&vehicleID, "vehicle", "", "Vehicle identifier.")
	start.Flags().StringVar(&deviceID, "device", "", "Paired device identifier.")

	end := &cobra.Command{
		Use:   "end",
		Short: "End the driver's session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.driver == "" {
				return fmt.Errorf("--driver is required")
			}
			return opts.del(fmt.Sprintf("/v1/sessions/%s", opts.driver))
		},
	}

	cmd.AddCommand(start, end)
	return cmd
}

func (o *rootOptions) get(path string, out any) error {
	body, err := o.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (o *rootOptions) post(path string, body any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	_, err := o.do(http.MethodPost, path, payload)
	return err
}

func (o *rootOptions) del(path string) error {
	_, err := o.do(http.MethodDelete, path, nil)
	return err
}

func (o *rootOptions) do(method, path string, payload []byte) ([]byte, error) {
	client := &http.Client{Timeout: o.timeout}

	req, err := http.NewRequest(method, o.server+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(body))
	}
	return body, nil
}

func formatClock(d time.Duration) string {
	if d <= 0 {
		return "0h00m (exhausted)"
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
