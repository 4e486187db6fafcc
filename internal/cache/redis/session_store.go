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

// SessionStore implements domain.SessionStore for the HTTP server, where
// several browsers share one process.
//
// Key schema:
//
//	{ns}:session:{id} - string, JSON session, expiring with the token
type SessionStore struct {
	rdb        *redis.Client
	keys       Keyspace
	defaultTTL time.Duration
	now        func() time.Time
}

// NewSessionStore creates a SessionStore. Sessions without an expiry are
// kept for defaultTTL.
func NewSessionStore(c *Client, defaultTTL time.Duration) *SessionStore {
	return &SessionStore{rdb: c.rdb, keys: c.keys, defaultTTL: defaultTTL, now: time.Now}
}

func (ss *SessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	data, err := ss.rdb.Get(ctx, ss.keys.Session(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("redis: get session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Session{}, fmt.Errorf("redis: unmarshal session: %w", err)
	}
	return s, nil
}

func (ss *SessionStore) Save(ctx context.Context, s domain.Session) error {
	ttl := ss.ttl(s)
	if ttl <= 0 {
		return ss.Delete(ctx, s.ID)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal session: %w", err)
	}
	if err := ss.rdb.Set(ctx, ss.keys.Session(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: save session: %w", err)
	}
	return nil
}

func (ss *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ss.rdb.Del(ctx, ss.keys.Session(id)).Err(); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

// ttl keeps a session exactly as long as its token is valid.
func (ss *SessionStore) ttl(s domain.Session) time.Duration {
	if s.ExpiresAt.IsZero() {
		return ss.defaultTTL
	}
	return s.ExpiresAt.Sub(ss.now())
}

var _ domain.SessionStore = (*SessionStore)(nil)
