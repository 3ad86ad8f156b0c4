package ports

import "github.com/akhanrex/probedge/internal/domain"

// StateDelta is a single-writer-per-field-family update submitted to the
// state store. Nil fields are left untouched; cross-writer updates
// (e.g. the paper engine touching both Positions and Meta.PnL) are
// submitted as one delta so readers never observe a partially-applied
// cycle.
type StateDelta struct {
	Quotes    map[string]domain.Quote
	Tags      map[string]domain.Tags
	Positions map[string]domain.Position
	Agents    map[string]domain.AgentHB
	Meta      *domain.Meta
}

// StateStore owns the single shared SystemState. Writers submit deltas;
// readers take an immutable copy. Implementations persist to disk on a
// debounced schedule.
type StateStore interface {
	Apply(delta StateDelta) domain.SystemState
	Snapshot() domain.SystemState
	Persist() error
}

// SnapshotStore owns the immutable per-day plan snapshots.
type SnapshotStore interface {
	// Write atomically persists snap for its date. Returns an error if a
	// locked snapshot already exists for that date (invariant
	// violation — snapshots never mutate post-lock).
	Write(snap domain.Snapshot) error
	Load(date string) (domain.Snapshot, bool, error)
}
