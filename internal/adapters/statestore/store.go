// Package statestore implements the single shared SystemState: a
// copy-on-write snapshot pointer writers publish atomically and readers
// dereference without blocking, fit for many concurrent (1Hz) readers
// and few writers.
package statestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

// debounceInterval is the minimum spacing between persisted writes.
const debounceInterval = 250 * time.Millisecond

// Store is the in-process state store. It is safe for concurrent use by
// multiple writer goroutines (one per state family) and many readers.
type Store struct {
	path string

	writeMu sync.Mutex // serializes the Apply read-modify-write cycle
	ptr     atomic.Pointer[domain.SystemState]

	persistMu   sync.Mutex
	lastPersist time.Time
	dirty       atomic.Bool
}

// New creates a Store seeded with initial, persisting to path on every
// Apply (subject to debouncing).
func New(path string, initial domain.SystemState) *Store {
	s := &Store{path: path}
	snap := initial.Clone()
	s.ptr.Store(&snap)
	return s
}

// Load reads a previously persisted live_state.json from path, for
// mid-day restart reconciliation. Returns ok=false if the file does not
// exist.
func Load(path string) (domain.SystemState, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.SystemState{}, false, nil
		}
		return domain.SystemState{}, false, fmt.Errorf("statestore.Load: %w", err)
	}
	var wire wireState
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.SystemState{}, false, fmt.Errorf("statestore.Load: parse: %w", err)
	}
	return wire.toDomain(), true, nil
}

// Apply merges delta into the current state under a single writer-per-
// field-family discipline and publishes the result as the new version.
// Cross-writer updates are submitted as one delta so readers never see a
// partially-applied cycle. The load-clone-mutate-store sequence runs
// under writeMu: several runtime goroutines (ingestion, aggregation, the
// paper loop, the plan cron, persistence) all call Apply concurrently,
// and without serializing the cycle two overlapping calls would both
// clone the same prior version and the second ptr.Store would silently
// discard the first caller's delta.
func (s *Store) Apply(delta ports.StateDelta) domain.SystemState {
	s.writeMu.Lock()
	cur := *s.ptr.Load()
	next := cur.Clone()
	next.Version = cur.Version + 1

	for k, v := range delta.Quotes {
		next.Quotes[k] = v
	}
	for k, v := range delta.Tags {
		next.Tags[k] = v
	}
	for k, v := range delta.Positions {
		next.Positions[k] = v
	}
	for k, v := range delta.Agents {
		next.Agents[k] = v
	}
	if delta.Meta != nil {
		next.Meta = *delta.Meta
	}

	s.ptr.Store(&next)
	s.writeMu.Unlock()

	s.dirty.Store(true)
	if err := s.maybePersist(); err != nil {
		slog.Warn("statestore: persist failed", "err", err)
	}
	return next
}

// Snapshot returns the current immutable state. Safe for any number of
// concurrent readers; never blocks on a writer.
func (s *Store) Snapshot() domain.SystemState {
	return *s.ptr.Load()
}

// Persist forces an unconditional write-tmp-then-rename of the current
// state to disk, bypassing the debounce window. Used on shutdown.
func (s *Store) Persist() error {
	return s.writeNow()
}

const (
	heartbeatWarnAfter = 10 * time.Second
	heartbeatDownAfter = 60 * time.Second
)

// Heartbeat records component as OK, alive as of at. Callers invoke this
// from whichever goroutine actually performs the component's work —
// there is no separate heartbeat-sending goroutine.
func (s *Store) Heartbeat(component string, at time.Time) {
	s.Apply(ports.StateDelta{Agents: map[string]domain.AgentHB{
		component: {Component: component, Status: "OK", LastHeartbeatTS: at},
	}})
}

// CheckHeartbeats demotes any component that has gone quiet: WARN past
// heartbeatWarnAfter, DOWN past heartbeatDownAfter. Intended to be
// called periodically from the persistence goroutine's own ticker
// rather than running its own.
func (s *Store) CheckHeartbeats(now time.Time) {
	cur := s.Snapshot()
	delta := map[string]domain.AgentHB{}
	for name, hb := range cur.Agents {
		age := now.Sub(hb.LastHeartbeatTS)
		status := hb.Status
		switch {
		case age >= heartbeatDownAfter:
			status = "DOWN"
		case age >= heartbeatWarnAfter:
			status = "WARN"
		default:
			continue
		}
		if status == hb.Status {
			continue
		}
		hb.Status = status
		delta[name] = hb
	}
	if len(delta) > 0 {
		s.Apply(ports.StateDelta{Agents: delta})
	}
}

func (s *Store) maybePersist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if time.Since(s.lastPersist) < debounceInterval {
		return nil
	}
	return s.writeNowLocked()
}

func (s *Store) writeNow() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.writeNowLocked()
}

func (s *Store) writeNowLocked() error {
	if s.path == "" {
		return nil
	}
	state := *s.ptr.Load()
	wire := fromDomain(state)
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".live_state-*.tmp")
	if err != nil {
		return fmt.Errorf("statestore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: rename: %w", err)
	}

	s.lastPersist = time.Now()
	s.dirty.Store(false)
	return nil
}
