package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a minimum delay between consecutive actions. Each
// adapter owns its own Limiter so throttling one marketplace never
// serializes requests to another.
type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

type SimpleLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleLimiter(minDelay, maxDelay time.Duration) *SimpleLimiter {
	return &SimpleLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

// Wait blocks until at least the configured delay has elapsed since the
// previous call, or until ctx is done.
func (l *SimpleLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.calculateDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *SimpleLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minDelay = min
	l.maxDelay = max
}

func (l *SimpleLimiter) calculateDelay() time.Duration {
	if !l.jitter || l.maxDelay <= l.minDelay {
		return l.minDelay
	}

	delta := l.maxDelay - l.minDelay
	return l.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// AdaptiveConfig tunes how an AdaptiveLimiter reacts to a marketplace's
// behavior. Zero values fall back to defaults suited for scraping a
// bot-sensitive site every couple of seconds.
type AdaptiveConfig struct {
	// MaxErrors is how many consecutive failures trigger a backoff.
	MaxErrors int
	// BackoffFactor multiplies both delays on backoff.
	BackoffFactor float64
	// RecoveryRuns is how many consecutive successes ease the delay.
	RecoveryRuns int
	// RecoveryFactor multiplies the minimum delay on recovery.
	RecoveryFactor float64
	// FloorDelay bounds recovery; CeilDelay bounds backoff.
	FloorDelay time.Duration
	CeilDelay  time.Duration
}

func (c AdaptiveConfig) withDefaults() AdaptiveConfig {
	if c.MaxErrors <= 0 {
		c.MaxErrors = 3
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 1.5
	}
	if c.RecoveryRuns <= 0 {
		c.RecoveryRuns = 5
	}
	if c.RecoveryFactor <= 0 || c.RecoveryFactor >= 1 {
		c.RecoveryFactor = 0.9
	}
	if c.FloorDelay <= 0 {
		c.FloorDelay = 500 * time.Millisecond
	}
	if c.CeilDelay <= 0 {
		c.CeilDelay = 2 * time.Minute
	}
	return c
}

// AdaptiveLimiter backs off when a marketplace starts rejecting requests
// and slowly recovers after a run of successes.
type AdaptiveLimiter struct {
	*SimpleLimiter
	cfg          AdaptiveConfig
	errorCount   int
	successCount int
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return NewAdaptiveLimiterWith(minDelay, maxDelay, AdaptiveConfig{})
}

func NewAdaptiveLimiterWith(minDelay, maxDelay time.Duration, cfg AdaptiveConfig) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		SimpleLimiter: NewSimpleLimiter(minDelay, maxDelay),
		cfg:           cfg.withDefaults(),
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > a.cfg.RecoveryRuns {
		newMin := time.Duration(float64(a.minDelay) * a.cfg.RecoveryFactor)
		if newMin < a.cfg.FloorDelay {
			newMin = a.cfg.FloorDelay
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.cfg.MaxErrors {
		newMin := time.Duration(float64(a.minDelay) * a.cfg.BackoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.cfg.BackoffFactor)

		if ceil := a.cfg.CeilDelay / 2; newMin > ceil {
			newMin = ceil
		}
		if newMax > a.cfg.CeilDelay {
			newMax = a.cfg.CeilDelay
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
