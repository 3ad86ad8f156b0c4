// Package clock provides the production and replay Clock implementations.
// Every time-gated decision in the core reads through one of these —
// this is the single decision that makes the system deterministically
// replayable.
package clock

import (
	"context"
	"time"
)

var ist *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	ist = loc
}

// IST returns the Asia/Kolkata location (falling back to a fixed +5:30
// offset if the tzdata database is unavailable).
func IST() *time.Location { return ist }

// Wall is the production Clock: it reads the system clock, rendered in
// IST.
type Wall struct{}

// NewWall constructs a wall-clock Clock.
func NewWall() Wall { return Wall{} }

func (Wall) Now() time.Time {
	return time.Now().In(ist)
}

func (Wall) WaitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
