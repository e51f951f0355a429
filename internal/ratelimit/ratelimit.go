package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces out requests against the tracked shops.
type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// JitteredLimiter enforces a randomized delay between consecutive
// requests so checks against the same shop do not arrive in bursts.
type JitteredLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJitteredLimiter(minDelay, maxDelay time.Duration) *JitteredLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitteredLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (l *JitteredLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.nextDelay()

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

func (l *JitteredLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minDelay = min
	l.maxDelay = max
}

func (l *JitteredLimiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}
