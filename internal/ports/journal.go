package ports

import "github.com/akhanrex/probedge/internal/domain"

// Journal is the append-only execution ledger the paper engine writes
// fills to.
type Journal interface {
	AppendFill(fill domain.Fill) error
}
