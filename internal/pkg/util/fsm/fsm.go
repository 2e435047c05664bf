package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning transition callback to the looplab
// callback signature, surfacing the error through event.Err.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}
