package domain

import (
	"context"
	"time"
)

// SummaryCache keeps the last committed dashboard summary per user.
type SummaryCache interface {
	Get(ctx context.Context, userID string) (DashboardSummary, error)
	Set(ctx context.Context, s DashboardSummary) error
	Invalidate(ctx context.Context, userID string) error
}

// RateLimiter provides sliding-window rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides short-lived exclusive locks.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus is a publish/subscribe channel for dashboard updates.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
