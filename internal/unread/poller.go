package unread

import (
	"context"
	"log"
	"time"
)

// Poller observes a counterpart's read position on a bounded interval and
// exposes it as a subscribable stream, so a push transport can replace the
// polling without changing the engine.
type Poller struct {
	engine   *Engine
	interval time.Duration
}

// NewPoller constructs a Poller. Intervals under a second are clamped to
// keep the backing store out of a hot loop.
func NewPoller(engine *Engine, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{engine: engine, interval: interval}
}

// Subscribe streams receipt updates for a connection thread until ctx is
// done. Only changes are delivered; a slow consumer drops intermediate
// updates rather than blocking the poll loop.
func (p *Poller) Subscribe(ctx context.Context, threadID int, viewerID int, counterpartID int) <-chan Receipt {
	out := make(chan Receipt, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var last Receipt
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			receipt, err := p.engine.Receipts(ctx, threadID, viewerID, counterpartID)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("receipt poll failed thread=%d: %v", threadID, err)
				}
				continue
			}
			if receiptsEqual(receipt, last) {
				continue
			}
			last = receipt

			select {
			case out <- receipt:
			default:
				// Drop in favor of the next poll; the stream carries
				// positions, not deltas, so nothing is lost for good.
			}
		}
	}()

	return out
}

func receiptsEqual(a, b Receipt) bool {
	if a.LatestSeenMessageID != b.LatestSeenMessageID {
		return false
	}
	switch {
	case a.CounterpartLastRead == nil && b.CounterpartLastRead == nil:
		return true
	case a.CounterpartLastRead == nil || b.CounterpartLastRead == nil:
		return false
	default:
		return a.CounterpartLastRead.Equal(*b.CounterpartLastRead)
	}
}
