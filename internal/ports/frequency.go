package ports

import "github.com/akhanrex/probedge/internal/domain"

// FrequencyTable is the read-only in-memory lookup of historical
// tag-tuple outcomes, loaded once at startup and never mutated at
// runtime.
type FrequencyTable interface {
	// Lookup returns the row for symbol at the given level and key, and
	// whether it exists.
	Lookup(symbol string, level domain.Level, key []string) (domain.FreqRow, bool)
}

// MasterDataSource supplies the previous trading day's aggregated
// session statistics per symbol.
type MasterDataSource interface {
	PriorDay(symbol string) (domain.MasterRow, bool)
}
