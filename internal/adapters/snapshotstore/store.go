// Package snapshotstore persists the immutable daily plan Snapshot: one
// write-tmp-then-rename per day, retried on failure, never mutated once
// locked.
package snapshotstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akhanrex/probedge/internal/domain"
)

const (
	maxWriteAttempts = 3
	retryBackoff     = time.Second
)

// Store implements ports.SnapshotStore against a directory of one JSON
// file per trading day, named plan_snapshot_YYYY-MM-DD.json.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory must already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("plan_snapshot_%s.json", date))
}

// Write atomically persists snap for its date. If a locked snapshot
// already exists for that date, Write refuses to overwrite it — plan
// snapshots never mutate post-lock. On transient write failure it
// makes up to maxWriteAttempts attempts in total, retryBackoff apart,
// before giving up.
func (s *Store) Write(snap domain.Snapshot) error {
	existing, ok, err := s.Load(snap.Date)
	if err != nil {
		return fmt.Errorf("snapshotstore.Write: check existing: %w", err)
	}
	if ok && existing.Locked {
		return fmt.Errorf("snapshotstore.Write: snapshot for %s is already locked", snap.Date)
	}

	data, err := json.MarshalIndent(fromDomainSnapshot(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("snapshotstore.Write: marshal: %w", err)
	}

	path := s.path(snap.Date)
	var writeErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if writeErr = writeAtomic(path, data); writeErr == nil {
			return nil
		}
		if attempt < maxWriteAttempts {
			time.Sleep(retryBackoff)
		}
	}
	return fmt.Errorf("snapshotstore.Write: %d attempts failed: %w", maxWriteAttempts, writeErr)
}

// Load reads the snapshot for date, if one exists.
func (s *Store) Load(date string) (domain.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, fmt.Errorf("snapshotstore.Load: %w", err)
	}
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("snapshotstore.Load: parse: %w", err)
	}
	return w.toDomainSnapshot(), true, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".plan-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
