package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// deficitSleepMargin is added to every deficit wait to absorb floating-point
// rounding and scheduler jitter, so a woken waiter finds a full token.
const deficitSleepMargin = 10 * time.Millisecond

// TokenBucket throttles outbound requests to one upstream provider. Acquire
// blocks until a token is available; it never rejects, trading latency for
// compliance with the configured rate. One bucket is dedicated per provider
// so providers with different rate tolerances never contend with each other.
type TokenBucket struct {
	capacity float64
	fillRate float64 // tokens per second
	clock    clockwork.Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a bucket holding up to capacity tokens, refilled at
// fillRate tokens per second. The bucket starts full.
func NewTokenBucket(capacity int, fillRate float64) (*TokenBucket, error) {
	return NewTokenBucketWithInitial(capacity, fillRate, float64(capacity))
}

// NewTokenBucketWithInitial creates a bucket whose starting token count
// differs from its capacity.
func NewTokenBucketWithInitial(capacity int, fillRate float64, initialTokens float64) (*TokenBucket, error) {
	return newTokenBucket(capacity, fillRate, initialTokens, clockwork.NewRealClock())
}

func newTokenBucket(capacity int, fillRate float64, initialTokens float64, clock clockwork.Clock) (*TokenBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("token bucket capacity must be positive, got %d", capacity)
	}
	if fillRate <= 0 {
		return nil, fmt.Errorf("token bucket fill rate must be positive, got %f", fillRate)
	}

	b := &TokenBucket{
		capacity:   float64(capacity),
		fillRate:   fillRate,
		clock:      clock,
		tokens:     initialTokens,
		lastRefill: clock.Now(),
	}

	log.Info().
		Int("capacity", capacity).
		Float64("fill_rate", fillRate).
		Msg("token bucket enabled")

	return b, nil
}

// refill credits tokens for the time elapsed since the last refill, capped at
// capacity. Caller must hold b.mu.
func (b *TokenBucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.fillRate)
	b.lastRefill = now
}

// Acquire blocks the caller until one token is available, then consumes it.
// The deficit sleep happens outside the lock so independent waiters interleave
// instead of serializing behind whoever slept first.
func (b *TokenBucket) Acquire() {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			remaining := b.tokens
			b.mu.Unlock()
			log.Debug().Float64("tokens_remaining", remaining).Msg("token consumed")
			return
		}
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.fillRate * float64(time.Second))
		b.mu.Unlock()

		log.Debug().Dur("wait", wait).Msg("token bucket empty, waiting")
		b.clock.Sleep(wait + deficitSleepMargin)
	}
}

// Record is the extension point for feedback-driven throttling, e.g. backing
// off further after observing an HTTP 429 from the provider. Token
// consumption already happens in Acquire, so the base bucket has nothing to
// record.
func (b *TokenBucket) Record() {}
