package telemetry

// Diagnostic trouble code (DTC) decoding per SAE J2012. Decoding never
// fails: malformed codes degrade to the "Unknown" sentinel values so a bad
// frame still produces a displayable record.

// FaultCode is the structured breakdown of a single DTC.
type FaultCode struct {
	Code        string `json:"code"`
	System      string `json:"system"`
	Generic     bool   `json:"generic"`
	Subsystem   string `json:"subsystem"`
	Description string `json:"description"`
}

const (
	unknownLabel = "Unknown"

	// placeholderDescription is attached to codes absent from the known-fault
	// table.
	placeholderDescription = "Unknown fault code, refer to manufacturer documentation"
)

var systems = map[byte]string{
	'P': "Powertrain",
	'C': "Chassis",
	'B': "Body",
	'U': "Network",
}

var subsystems = map[byte]string{
	'0': "Fuel and Air Metering and Auxiliary Emission Controls",
	'1': "Fuel and Air Metering",
	'2': "Fuel and Air Metering (Injector Circuit)",
	'3': "Ignition System or Misfire",
	'4': "Auxiliary Emission Controls",
	'5': "Vehicle Speed Control and Idle Control System",
	'6': "Computer Output Circuit",
	'7': "Transmission",
	'8': "Transmission",
}

// knownFaults maps common DTCs to their standard descriptions.
var knownFaults = map[string]string{
	"P0001": "Fuel Volume Regulator Control Circuit/Open",
	"P0128": "Coolant Thermostat Below Regulating Temperature",
	"P0133": "O2 Sensor Circuit Slow Response (Bank 1, Sensor 1)",
	"P0171": "System Too Lean (Bank 1)",
	"P0174": "System Too Lean (Bank 2)",
	"P0300": "Random/Multiple Cylinder Misfire Detected",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0302": "Cylinder 2 Misfire Detected",
	"P0401": "Exhaust Gas Recirculation Flow Insufficient Detected",
	"P0420": "Catalyst System Efficiency Below Threshold (Bank 1)",
	"P0442": "Evaporative Emission Control System Leak Detected (Small Leak)",
	"P0455": "Evaporative Emission Control System Leak Detected (Gross Leak)",
	"P0700": "Transmission Control System Malfunction",
	"C0035": "Left Front Wheel Speed Sensor Circuit",
	"U0100": "Lost Communication With ECM/PCM",
}

// DecodeFaultCode produces the structured breakdown of a DTC: system
// category from the first character, generic-vs-manufacturer flag from the
// second, subsystem from the third, plus the known description when the code
// is in the lookup table.
func DecodeFaultCode(code string) FaultCode {
	fc := FaultCode{
		Code:        code,
		System:      unknownLabel,
		Subsystem:   unknownLabel,
		Description: placeholderDescription,
	}

	if len(code) != 5 {
		return fc
	}

	system, ok := systems[code[0]]
	if !ok {
		return fc
	}
	fc.System = system
	fc.Generic = code[1] == '0'
	if sub, ok := subsystems[code[2]]; ok {
		fc.Subsystem = sub
	}
	if desc, ok := knownFaults[code]; ok {
		fc.Description = desc
	}

	return fc
}
