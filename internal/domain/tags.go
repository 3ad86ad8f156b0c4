package domain

import "time"

// DirTag is the shared enum for PDC and OT: directional/trend/range.
type DirTag string

const (
	TagBull DirTag = "BULL"
	TagBear DirTag = "BEAR"
	TagTR   DirTag = "TR"
)

// OpenLocation is where today's 09:15 open sits relative to the prior
// day's range.
type OpenLocation string

const (
	OLAboveRange OpenLocation = "OAR" // above prior day's high
	OLOpenHigh   OpenLocation = "OOH" // upper half of prior day's range
	OLInsideMid  OpenLocation = "OIM" // inside prior day's body
	OLOpenLow    OpenLocation = "OOL" // lower half of prior day's range
	OLBelowRange OpenLocation = "OBR" // below prior day's low
)

// TagState is the per-symbol monotone state machine: NONE -> PDC_SET ->
// OL_SET -> OT_SET. It never regresses within a day.
type TagState string

const (
	TagStateNone   TagState = "NONE"
	TagStatePDCSet TagState = "PDC_SET"
	TagStateOLSet  TagState = "OL_SET"
	TagStateOTSet  TagState = "OT_SET"
)

// Tags holds the three categorical session descriptors for one symbol.
// Each field is nil until its cutover fires; once set it is never
// unset or overwritten within the same trading day.
type Tags struct {
	Symbol string

	PDC *DirTag
	OL  *OpenLocation
	OT  *DirTag

	PDCComputedAt time.Time
	OLComputedAt  time.Time
	OTComputedAt  time.Time

	State TagState
}

// Ready reports whether all three tags are set (non-nil).
func (t Tags) Ready() bool {
	return t.PDC != nil && t.OL != nil && t.OT != nil
}

// WithPDC returns a copy of t with PDC set. Panics if PDC is already set —
// callers must not invoke this twice for the same symbol/day.
func (t Tags) WithPDC(v DirTag, at time.Time) Tags {
	if t.PDC != nil {
		panic("domain: PDC already set for " + t.Symbol)
	}
	t.PDC = &v
	t.PDCComputedAt = at
	t.State = TagStatePDCSet
	return t
}

// WithOL returns a copy of t with OL set.
func (t Tags) WithOL(v OpenLocation, at time.Time) Tags {
	if t.OL != nil {
		panic("domain: OL already set for " + t.Symbol)
	}
	t.OL = &v
	t.OLComputedAt = at
	t.State = TagStateOLSet
	return t
}

// WithOT returns a copy of t with OT set.
func (t Tags) WithOT(v DirTag, at time.Time) Tags {
	if t.OT != nil {
		panic("domain: OT already set for " + t.Symbol)
	}
	t.OT = &v
	t.OTComputedAt = at
	t.State = TagStateOTSet
	return t
}
