package ports

import (
	"context"
	"errors"

	"github.com/akhanrex/probedge/internal/domain"
)

// ErrEndOfStream is returned by TickSource.Next when no more ticks will
// ever arrive (replay exhausted, or the live feed was closed cleanly).
var ErrEndOfStream = errors.New("ticksource: end of stream")

// TickSource delivers per-symbol tick events. The live variant
// subscribes to a broker push feed; the replay variant synthesizes
// ticks from persisted 5-minute CSVs. Both honor: same input -> same
// tick sequence.
type TickSource interface {
	// Next blocks until a tick is available, ctx is cancelled, or the
	// stream ends (ErrEndOfStream).
	Next(ctx context.Context) (domain.Tick, error)

	// Mode reports which variant is driving this run; propagated into
	// snapshot/state metadata.
	Mode() domain.Mode

	// Close releases the underlying connection or file handles.
	Close() error
}
