package core

import (
	"encoding/json"
	"time"
)

// DataType tags a telemetry frame with the kind of data it carries.
type DataType string

const (
	DataTypeEngine    DataType = "engine_data"
	DataTypeLocation  DataType = "location"
	DataTypeHosStatus DataType = "hos_status"
	DataTypeFault     DataType = "fault_data"
)

// RawFrame is an opaque device-sourced record as published by the transport
// gateway. It is consumed exactly once by the normalizer and then discarded.
type RawFrame struct {
	DataType  DataType        `json:"dataType"`
	Timestamp time.Time       `json:"timestamp"`
	Fields    json.RawMessage `json:"fields"`
}

// DeviceEventKind identifies a transport lifecycle event.
type DeviceEventKind string

const (
	DeviceScanned        DeviceEventKind = "scanned"
	DeviceConnected      DeviceEventKind = "connected"
	DeviceConnectFailure DeviceEventKind = "connect_failure"
)

// DeviceEvent is a discrete transport lifecycle notification. The frame
// source consumes these only to gate when telemetry ingestion begins.
type DeviceEvent struct {
	Kind      DeviceEventKind `json:"kind"`
	DeviceID  string          `json:"deviceId"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason,omitempty"`
}
