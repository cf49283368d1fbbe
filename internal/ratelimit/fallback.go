package ratelimit

import (
	"context"
	"log/slog"
)

// Fallback consults primary and switches to secondary for any request
// where primary fails, so a Redis outage degrades to per-instance limits
// instead of rejecting or admitting everything.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    *slog.Logger
}

// NewFallback creates a Fallback limiter.
func NewFallback(primary, secondary Limiter, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Allow asks primary, then secondary if primary errors.
func (f *Fallback) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := f.primary.Allow(ctx, key)
	if err == nil {
		return d, nil
	}
	f.logger.Warn("rate limiter backend failed, using in-memory counters", "error", err)
	return f.secondary.Allow(ctx, key)
}
