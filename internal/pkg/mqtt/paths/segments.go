package paths

// Topic segments for the TruckLink ELD protocol.
// These constants define the routing topology contract between the BLE/OBD
// gateway, the driver agent and the fleet notification plane.

// Upstream: gateway -> agent (telemetry ingestion)
const (
	// Frames is the topic segment carrying raw telemetry frames.
	// Payload: RawFrame JSON ({ "dataType": "engine_data", ... })
	// Pattern: {root}/frames/{deviceID}
	Frames = "frames"

	// Device is the topic segment for device lifecycle events
	// (scanned / connected / connect_failure).
	// Pattern: {root}/device/{deviceID}
	Device = "device"
)

// Downstream: agent -> fleet plane (alerts & status)
const (
	// Alerts is the topic segment for HOS violation alerts.
	// Payload: ViolationAlert JSON
	// Pattern: {root}/alerts/{driverID}
	Alerts = "alerts"

	// Prompts is the topic segment for driver-facing inactivity prompts.
	// Pattern: {root}/prompts/{driverID}
	Prompts = "prompts"

	// Online is the topic segment for reporting agent online/offline status.
	// Published retained, with a matching last-will for unexpected disconnects.
	// Pattern: {root}/online/{driverID}
	Online = "online"
)
