package session

import (
	"context"
	"time"
)

const tickInterval = time.Second

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type NewTickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Run drives the countdown from t and watches hidden for the candidate leaving the page.
// It returns once the session is no longer Active or ctx is done. When a tick and a
// hidden signal are both pending, hidden is handled first, so an expiring countdown
// never submits a session that was abandoned at the same instant.
func (c *Controller) Run(ctx context.Context, t Ticker, hidden <-chan struct{}) {
	defer t.Stop()

	for {
		if c.State() != StateActive {
			return
		}

		select {
		case <-ctx.Done():
			return

		case <-hidden:
			c.Hide(ctx)
			return

		case <-t.C():
			select {
			case <-hidden:
				c.Hide(ctx)
				return
			default:
			}

			c.Tick(ctx)
		}
	}
}
