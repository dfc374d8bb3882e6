// Package ratelimit admits weighted requests against a per-endpoint token
// bucket. Admission blocks until budget is available; only the caller's
// context can end the wait early.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

const (
	// DefaultPerMinute is the venue's default weight budget per address.
	DefaultPerMinute = 1200
	DefaultBurst     = 1200

	// Endpoint keys.
	Exchange = "exchange"
	Info     = "info"

	batchStep = 40
)

// Weights of info requests by type.
var infoWeights = map[string]int{
	"meta":     20,
	"spotMeta": 20,
	"allMids":  2,
}

// ExchangeWeight is the cost of an exchange action touching n items.
func ExchangeWeight(n int) int {
	if n < 0 {
		n = 0
	}
	return 1 + n/batchStep
}

// InfoWeight is the cost of an info request of the given type.
func InfoWeight(kind string) int {
	if w, ok := infoWeights[kind]; ok {
		return w
	}
	return 20
}

// Limiter holds one token bucket per endpoint key.
type Limiter struct {
	limit  rate.Limit
	burst  int
	logger *zap.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New returns a limiter refilling perMinute weight per minute with the given
// burst. Non-positive values fall back to the defaults.
func New(perMinute, burst int, logger *zap.Logger) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		logger:  logger,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Admit blocks until weight tokens are available on endpoint. A weight
// larger than the burst is clamped so the call can still proceed.
func (l *Limiter) Admit(ctx context.Context, endpoint string, weight int) error {
	if weight <= 0 {
		weight = 1
	}
	if weight > l.burst {
		weight = l.burst
	}
	b := l.bucket(endpoint)

	start := time.Now()
	if err := b.WaitN(ctx, weight); err != nil {
		l.logger.Warn("rate_limit_wait_abandoned",
			zap.String("endpoint", endpoint),
			zap.Int("weight", weight),
			zap.Error(err))
		return &venueerr.RateLimitTimeoutError{Endpoint: endpoint, Weight: weight, Err: waitErr(ctx, err)}
	}
	if waited := time.Since(start); waited > 10*time.Millisecond {
		l.logger.Debug("rate_limit_waited",
			zap.String("endpoint", endpoint),
			zap.Int("weight", weight),
			zap.Duration("waited", waited))
	}
	return nil
}

// Tokens reports the budget currently available on endpoint.
func (l *Limiter) Tokens(endpoint string) float64 {
	return l.bucket(endpoint).Tokens()
}

func (l *Limiter) bucket(endpoint string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[endpoint]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[endpoint] = b
	}
	return b
}

// WaitN reports "would exceed context deadline" before the deadline hits;
// surface the context's own error when it has one.
func waitErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
