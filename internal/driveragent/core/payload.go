package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CanonicalPayload is the normalized unit of replication. It is immutable
// once constructed; the sync pipeline may deliver it any number of times
// (the backend deduplicates on driverId + dataType + timestamp).
type CanonicalPayload struct {
	DriverID  string
	VehicleID string
	Timestamp time.Time
	DataType  DataType
	Fields    map[string]any
}

// Validation errors raised before any network attempt.
var (
	ErrMissingDriverID  = errors.New("payload missing driverId")
	ErrMissingVehicleID = errors.New("payload missing vehicleId")
	ErrMissingTimestamp = errors.New("payload missing timestamp")
)

// Validate fails fast on payloads that the backends would reject. Validation
// failures are terminal; the pipeline never retries them.
func (p *CanonicalPayload) Validate() error {
	if p.DriverID == "" {
		return ErrMissingDriverID
	}
	if p.VehicleID == "" {
		return ErrMissingVehicleID
	}
	if p.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if !p.Valid() {
		return fmt.Errorf("payload has unknown dataType %q", p.DataType)
	}
	return nil
}

func (p *CanonicalPayload) Valid() bool {
	switch p.DataType {
	case DataTypeEngine, DataTypeLocation, DataTypeHosStatus, DataTypeFault:
		return true
	}
	return false
}

// MarshalJSON produces the wire shape both destinations expect: the decoded
// fields flattened to the top level next to the identity fields, with the
// timestamp in epoch milliseconds.
func (p *CanonicalPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+4)
	for k, v := range p.Fields {
		out[k] = v
	}
	out["driverId"] = p.DriverID
	out["vehicleId"] = p.VehicleID
	out["timestamp"] = p.Timestamp.UnixMilli()
	out["dataType"] = string(p.DataType)
	return json.Marshal(out)
}
