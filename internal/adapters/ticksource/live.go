package ticksource

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/akhanrex/probedge/internal/domain"
)

// BrokerFeed is the external collaborator boundary for the live tick
// feed: a broker push/poll subscription this package does not
// implement. A production deployment wires a real broker client here.
type BrokerFeed interface {
	// Poll returns the next batch of ticks available since the last
	// call, blocking briefly if none are ready yet.
	Poll(ctx context.Context) ([]domain.Tick, error)
}

// liveRatePerSec bounds how often Live drains BrokerFeed, so a feed that
// pushes in bursts never floods downstream consumers.
const liveRatePerSec = 5

// Live wraps a BrokerFeed with rate limiting and a small internal
// buffer so Next always returns one tick at a time regardless of how
// the feed batches them.
type Live struct {
	feed    BrokerFeed
	limiter *rate.Limiter
	buf     []domain.Tick
}

// NewLive constructs a Live tick source over feed.
func NewLive(feed BrokerFeed) *Live {
	return &Live{
		feed:    feed,
		limiter: rate.NewLimiter(rate.Limit(liveRatePerSec), liveRatePerSec),
	}
}

func (l *Live) Next(ctx context.Context) (domain.Tick, error) {
	for len(l.buf) == 0 {
		if err := l.limiter.Wait(ctx); err != nil {
			return domain.Tick{}, err
		}
		batch, err := l.feed.Poll(ctx)
		if err != nil {
			return domain.Tick{}, fmt.Errorf("ticksource.Live: poll: %w", err)
		}
		l.buf = batch
	}
	t := l.buf[0]
	l.buf = l.buf[1:]
	return t, nil
}

func (l *Live) Mode() domain.Mode { return domain.ModeLive }

func (l *Live) Close() error { return nil }
