package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// SummaryCache implements domain.SummaryCache with one JSON hash per user.
//
// Key schema:
//
//	{ns}:dashboard:{userID} - hash, field "data" = JSON summary,
//	                             field "generation" = committed generation
type SummaryCache struct {
	rdb  *redis.Client
	keys Keyspace
	ttl  time.Duration
}

// NewSummaryCache creates a SummaryCache whose entries expire after ttl.
func NewSummaryCache(c *Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: c.rdb, keys: c.keys, ttl: ttl}
}

// Set stores s unless the cache already holds a newer generation for the
// same user.
func (sc *SummaryCache) Set(ctx context.Context, s domain.DashboardSummary) error {
	key := sc.keys.Dashboard(s.UserID)

	current, err := sc.rdb.HGet(ctx, key, "generation").Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: read summary generation %s: %w", s.UserID, err)
	}
	if err == nil && s.Generation != 0 && current > s.Generation {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal summary %s: %w", s.UserID, err)
	}

	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "generation", s.Generation)
	pipe.Expire(ctx, key, sc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set summary %s: %w", s.UserID, err)
	}
	return nil
}

// Get returns the cached summary, or domain.ErrNotFound.
func (sc *SummaryCache) Get(ctx context.Context, userID string) (domain.DashboardSummary, error) {
	data, err := sc.rdb.HGet(ctx, sc.keys.Dashboard(userID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DashboardSummary{}, domain.ErrNotFound
		}
		return domain.DashboardSummary{}, fmt.Errorf("redis: get summary %s: %w", userID, err)
	}

	var s domain.DashboardSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("redis: unmarshal summary %s: %w", userID, err)
	}
	return s, nil
}

// Invalidate drops the cached summary of userID.
func (sc *SummaryCache) Invalidate(ctx context.Context, userID string) error {
	if err := sc.rdb.Del(ctx, sc.keys.Dashboard(userID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate summary %s: %w", userID, err)
	}
	return nil
}

var _ domain.SummaryCache = (*SummaryCache)(nil)
