// Package telemetry converts raw device frames into the canonical payload
// records the sync pipeline replicates.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/metrics"
)

// Context identifies the session a frame belongs to.
type Context struct {
	DriverID  string
	VehicleID string
	DeviceID  string
}

// Normalize converts one raw frame into an immutable canonical payload.
//
// It is side-effect free (metrics aside) and never fails: malformed field
// data degrades to an empty field map, unknown fault codes degrade to the
// placeholder description. An incorrect value on a regulatory display is
// worse than a labeled unknown.
func Normalize(frame core.RawFrame, nctx Context) core.CanonicalPayload {
	fields := make(map[string]any)
	if len(frame.Fields) > 0 {
		// Malformed JSON leaves the map empty rather than failing the frame.
		_ = json.Unmarshal(frame.Fields, &fields)
	}

	if frame.DataType == core.DataTypeFault {
		decodeFaults(fields)
	}

	if nctx.DeviceID != "" {
		fields["deviceId"] = nctx.DeviceID
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	metrics.FramesNormalizedTotal.WithLabelValues(string(frame.DataType)).Inc()

	return core.CanonicalPayload{
		DriverID:  nctx.DriverID,
		VehicleID: nctx.VehicleID,
		Timestamp: ts,
		DataType:  frame.DataType,
		Fields:    fields,
	}
}

// decodeFaults replaces the raw "codes" list with structured breakdowns.
func decodeFaults(fields map[string]any) {
	raw, ok := fields["codes"].([]any)
	if !ok {
		return
	}

	decoded := make([]FaultCode, 0, len(raw))
	for _, c := range raw {
		code, ok := c.(string)
		if !ok {
			continue
		}
		decoded = append(decoded, DecodeFaultCode(code))
	}

	delete(fields, "codes")
	fields["faults"] = decoded
}

// SpeedSample extracts the speed reading carried by engine and location
// frames for the inactivity monitor. The second return reports whether the
// payload carried one.
func SpeedSample(p core.CanonicalPayload) (float64, bool) {
	if p.DataType != core.DataTypeEngine && p.DataType != core.DataTypeLocation {
		return 0, false
	}
	v, ok := p.Fields["speed_mph"]
	if !ok {
		return 0, false
	}
	speed, ok := v.(float64)
	return speed, ok
}
