package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
)

var testCtx = Context{DriverID: "drv-1", VehicleID: "veh-1", DeviceID: "dev-1"}

func TestNormalizeEngineFrame(t *testing.T) {
	ts := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	frame := core.RawFrame{
		DataType:  core.DataTypeEngine,
		Timestamp: ts,
		Fields:    json.RawMessage(`{"speed_mph": 52.5, "rpm": 1450, "odometer_mi": 182000.4}`),
	}

	p := Normalize(frame, testCtx)

	if p.DriverID != "drv-1" || p.VehicleID != "veh-1" {
		t.Errorf("identity not attached: %+v", p)
	}
	if !p.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", p.Timestamp, ts)
	}
	if p.Fields["deviceId"] != "dev-1" {
		t.Errorf("deviceId not attached: %+v", p.Fields)
	}
	if got := p.Fields["speed_mph"]; got != 52.5 {
		t.Errorf("speed_mph = %v, want 52.5", got)
	}

	if err := p.Validate(); err != nil {
		t.Errorf("normalized payload failed validation: %v", err)
	}
}

func TestNormalizeMalformedFieldsDegradeToEmpty(t *testing.T) {
	frame := core.RawFrame{
		DataType:  core.DataTypeLocation,
		Timestamp: time.Now(),
		Fields:    json.RawMessage(`{"lat": 41.2,`),
	}

	p := Normalize(frame, testCtx)

	// deviceId is the only surviving field.
	if len(p.Fields) != 1 || p.Fields["deviceId"] != "dev-1" {
		t.Errorf("Fields = %+v, want only deviceId", p.Fields)
	}
}

func TestNormalizeZeroTimestampIsFilled(t *testing.T) {
	p := Normalize(core.RawFrame{DataType: core.DataTypeEngine}, testCtx)
	if p.Timestamp.IsZero() {
		t.Error("zero frame timestamp must be replaced with receive time")
	}
}

func TestNormalizeDecodesFaultFrames(t *testing.T) {
	frame := core.RawFrame{
		DataType:  core.DataTypeFault,
		Timestamp: time.Now(),
		Fields:    json.RawMessage(`{"codes": ["P0300", "Z9XYZ"], "mil_on": true}`),
	}

	p := Normalize(frame, testCtx)

	if _, ok := p.Fields["codes"]; ok {
		t.Error("raw codes list must be replaced by structured faults")
	}
	faults, ok := p.Fields["faults"].([]FaultCode)
	if !ok || len(faults) != 2 {
		t.Fatalf("faults = %+v, want 2 decoded entries", p.Fields["faults"])
	}
	if faults[0].Description != "Random/Multiple Cylinder Misfire Detected" {
		t.Errorf("P0300 description = %q", faults[0].Description)
	}
	if faults[1].System != "Unknown" || faults[1].Description != placeholderDescription {
		t.Errorf("malformed code not degraded to unknown: %+v", faults[1])
	}
	if p.Fields["mil_on"] != true {
		t.Errorf("unrelated fields must survive fault decoding: %+v", p.Fields)
	}
}

func TestSpeedSample(t *testing.T) {
	tests := []struct {
		name      string
		dataType  core.DataType
		fields    map[string]any
		wantSpeed float64
		wantOK    bool
	}{
		{"engine frame with speed", core.DataTypeEngine, map[string]any{"speed_mph": 42.0}, 42.0, true},
		{"location frame with speed", core.DataTypeLocation, map[string]any{"speed_mph": 0.0}, 0.0, true},
		{"hos frame never samples", core.DataTypeHosStatus, map[string]any{"speed_mph": 42.0}, 0, false},
		{"missing field", core.DataTypeEngine, map[string]any{"rpm": 900.0}, 0, false},
		{"wrong type", core.DataTypeEngine, map[string]any{"speed_mph": "fast"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.CanonicalPayload{DataType: tt.dataType, Fields: tt.fields}
			speed, ok := SpeedSample(p)
			if speed != tt.wantSpeed || ok != tt.wantOK {
				t.Errorf("SpeedSample() = (%v, %t), want (%v, %t)", speed, ok, tt.wantSpeed, tt.wantOK)
			}
		})
	}
}
