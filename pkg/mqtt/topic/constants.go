package topic

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	// It matches exactly one topic level.
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#".
	// It matches the current level and all subsequent levels and must be the
	// last character in the topic filter.
	MultiWildcard = "#"
)
