// Package gate implements the timeline gate: a pure predicate over the
// clock that every producer queries before revealing its output. The
// server itself never withholds data — the gate governs internal
// producers (the classifier will not compute OT before its cutover even
// if the inputs are already available).
package gate

import (
	"time"

	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
)

// Field identifies which piece of the system state a producer is asking
// permission to reveal.
type Field string

const (
	FieldQuote Field = "quote"
	FieldOHLC  Field = "ohlc"
	FieldPDC   Field = "tags.PDC"
	FieldOL    Field = "tags.OL"
	FieldOT    Field = "tags.OT"
	FieldPlan  Field = "plan"
)

// Gate evaluates reveal() against a resolved set of cutover times.
type Gate struct {
	pdc        time.Duration
	ol         time.Duration
	ot         time.Duration
	eodFlatten time.Duration
}

// New resolves cfg's cutover strings once at startup.
func New(cfg config.CutoversConfig) Gate {
	return Gate{
		pdc:        config.MustParseCutover(cfg.PDC),
		ol:         config.MustParseCutover(cfg.OL),
		ot:         config.MustParseCutover(cfg.OT),
		eodFlatten: config.MustParseCutover(cfg.EODFlatten),
	}
}

func sinceMidnight(t time.Time) time.Duration {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}

// PDCCutover, OLCutover, OTCutover, and EODFlatten return now truncated
// to the trading day and offset by the configured cutover, i.e. the
// instant at which that cutover fires today.
func (g Gate) PDCCutover(now time.Time) time.Time    { return dayStart(now).Add(g.pdc) }
func (g Gate) OLCutover(now time.Time) time.Time     { return dayStart(now).Add(g.ol) }
func (g Gate) OTCutover(now time.Time) time.Time     { return dayStart(now).Add(g.ot) }
func (g Gate) EODFlatten(now time.Time) time.Time    { return dayStart(now).Add(g.eodFlatten) }

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Reveal reports whether field may be computed/exposed at now for snap.
func (g Gate) Reveal(field Field, now time.Time, snap domain.Snapshot) bool {
	switch field {
	case FieldQuote, FieldOHLC:
		return true
	case FieldPDC:
		return sinceMidnight(now) >= g.pdc
	case FieldOL:
		return sinceMidnight(now) >= g.ol
	case FieldOT:
		return sinceMidnight(now) >= g.ot
	case FieldPlan:
		return (snap.Status == domain.SnapshotReady || snap.Status == domain.SnapshotReadyPartial) && snap.Locked
	default:
		return false
	}
}

// CanComputePDC, CanComputeOL, CanComputeOT gate the classifier itself:
// it must not compute a tag before its cutover even if the underlying
// bars are already present.
func (g Gate) CanComputePDC(now time.Time) bool { return g.Reveal(FieldPDC, now, domain.Snapshot{}) }
func (g Gate) CanComputeOL(now time.Time) bool  { return g.Reveal(FieldOL, now, domain.Snapshot{}) }
func (g Gate) CanComputeOT(now time.Time) bool  { return g.Reveal(FieldOT, now, domain.Snapshot{}) }

// PastEODFlatten reports whether now has reached the 15:05 force-flat
// cutover.
func (g Gate) PastEODFlatten(now time.Time) bool {
	return sinceMidnight(now) >= g.eodFlatten
}
