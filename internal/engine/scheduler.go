package engine

import (
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/Holocron/internal/fetcher"
)

// Pacer spaces out requests to the wiki. Each Wait returns no sooner than
// delay after the previous one; with jitter the delay varies by ±25%.
type Pacer struct {
	delay     time.Duration
	jitter    bool
	lastFetch time.Time
	mu        sync.Mutex
}

// NewPacer creates a Pacer.
func NewPacer(delay time.Duration, jitter bool) *Pacer {
	return &Pacer{delay: delay, jitter: jitter}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.delay
	if p.jitter && delay > 0 {
		delay = fetcher.RandomDelay(delay)
	}

	if !p.lastFetch.IsZero() {
		if remaining := delay - time.Since(p.lastFetch); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	p.lastFetch = time.Now()
	return nil
}
