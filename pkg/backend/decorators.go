package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ormasoftchile/itemforge/pkg/logging"
)

// RateLimited wraps b so that calls are spaced by a token bucket of limit
// calls per second with the given burst.
func RateLimited(b Backend, limit float64, burst int) Backend {
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{inner: b, limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

type rateLimited struct {
	inner   Backend
	limiter *rate.Limiter
}

func (r *rateLimited) Generate(ctx context.Context, req Request) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, req)
}

func (r *rateLimited) ModelName() string { return r.inner.ModelName() }

// Retrying wraps b so that failed calls are retried up to attempts times in
// total, waiting delay, 2*delay, ... between them. Empty responses are not
// failures and are returned as is.
func Retrying(b Backend, attempts int, delay time.Duration, log *zap.Logger) Backend {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{inner: b, attempts: attempts, delay: delay, log: logging.OrNop(log)}
}

type retrying struct {
	inner    Backend
	attempts int
	delay    time.Duration
	log      *zap.Logger
}

func (r *retrying) Generate(ctx context.Context, req Request) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := r.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == r.attempts {
			break
		}
		r.log.Warn("backend call failed, retrying",
			zap.String("stage", req.Stage),
			zap.Int("attempt", attempt),
			zap.Error(err))

		t := time.NewTimer(time.Duration(attempt) * r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("after %d attempt(s): %w", attempt, ctx.Err())
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("after %d attempt(s): %w", r.attempts, lastErr)
}

func (r *retrying) ModelName() string { return r.inner.ModelName() }
