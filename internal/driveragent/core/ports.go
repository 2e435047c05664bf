package core

import (
	"context"
)

// StatusStore is the external duty-status event log. It owns ordering and
// certification; this module only reads the log and requests transitions.
type StatusStore interface {
	// CurrentStatus returns the driver's active duty status.
	CurrentStatus(ctx context.Context, driverID string) (DutyStatus, error)

	// Events returns the driver's status log in wall-clock order.
	Events(ctx context.Context, driverID string) ([]StatusEvent, error)

	// RequestStatusChange closes the active period and opens a new one with
	// the given status. The store rejects mutation of certified events.
	RequestStatusChange(ctx context.Context, driverID string, status DutyStatus) error
}

// Notifier is the outbound notification sink. Delivery is fire-and-forget
// from the caller's perspective; failures are logged by the implementation.
type Notifier interface {
	// SendViolationAlert delivers a HOS violation alert for the driver.
	SendViolationAlert(ctx context.Context, alert ViolationAlert) error

	// SendInactivityPrompt asks the driver to confirm they are still driving.
	SendInactivityPrompt(ctx context.Context, driverID string) error
}

// TokenProvider resolves the bearer credential for a sync destination.
// The pipeline calls it immediately before every attempt so a token refreshed
// mid-retry is picked up.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }
