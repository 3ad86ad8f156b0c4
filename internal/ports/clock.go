package ports

import (
	"context"
	"time"
)

// Clock is the single time abstraction every core component reads
// through. Production wires a wall-clock implementation; replay wires a
// virtual clock driven by the replay tick stream. No other component in
// the core may call time.Now directly.
type Clock interface {
	// Now returns the current IST wall/virtual time.
	Now() time.Time

	// WaitUntil blocks until t, or ctx is cancelled, whichever comes
	// first. Returns ctx.Err() on cancellation, nil otherwise.
	WaitUntil(ctx context.Context, t time.Time) error
}
