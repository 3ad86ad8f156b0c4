package ticksource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanrex/probedge/internal/adapters/clock"
	"github.com/akhanrex/probedge/internal/adapters/ticksource"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

func TestReplay_EmitsInChronologicalOrder(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC)
	clk := clock.NewReplay(start)

	bars := map[string][]domain.Bar{
		"ALPHA": {
			{Symbol: "ALPHA", Start: start, Open: 100, High: 101, Low: 99.5, Close: 100.5, Volume: 1000},
		},
		"BETA": {
			{Symbol: "BETA", Start: start.Add(5 * time.Minute), Open: 500, High: 505, Low: 498, Close: 502, Volume: 2000},
		},
	}

	src := ticksource.NewReplay(clk, bars)
	ctx := context.Background()

	var prev time.Time
	count := 0
	for {
		tick, err := src.Next(ctx)
		if err == ports.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		assert.False(t, tick.TS.Before(prev))
		prev = tick.TS
		count++
	}
	assert.Equal(t, 8, count, "4 ticks per bar x 2 bars")
}

func TestReplay_AdvancesClock(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC)
	clk := clock.NewReplay(start.Add(-time.Minute))
	bars := map[string][]domain.Bar{
		"ALPHA": {{Symbol: "ALPHA", Start: start, Open: 100, High: 100, Low: 100, Close: 100, Volume: 100}},
	}
	src := ticksource.NewReplay(clk, bars)
	_, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, start.Equal(clk.Now()), "clock advanced to the tick's timestamp, got %v", clk.Now())
}
