package datasync

// Status is the per-destination outcome of one pipeline submission.
type Status string

const (
	// StatusDelivered: every payload reached the destination.
	StatusDelivered Status = "delivered"
	// StatusFailed: at least one payload exhausted its attempts.
	StatusFailed Status = "failed"
	// StatusDisabled: the destination is switched off in configuration;
	// no network I/O was attempted.
	StatusDisabled Status = "disabled"
)

// Result reports the outcome of one submission to one destination.
type Result struct {
	Destination string
	Status      Status
	Delivered   int
	Failed      int
	Err         error
}
