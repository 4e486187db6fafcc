package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/domain"
)

func TestHasPattern(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{"ch:dashboard:42", false},
		{"ch:dashboard:*", true},
		{"ch:dashboard:?", true},
		{"ch:[ab]", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			assert.Equal(t, tt.want, hasPattern(tt.channel))
		})
	}
}

func TestKeyspace(t *testing.T) {
	k := NewKeyspace("")
	assert.Equal(t, "tontine:dashboard:u1", k.Dashboard("u1"))
	assert.Equal(t, "tontine:session:s1", k.Session("s1"))
	assert.Equal(t, "tontine:ratelimit:1.2.3.4", k.RateLimit("1.2.3.4"))
	assert.Equal(t, "tontine:lock:refresh:u1", k.Lock("refresh:u1"))
	assert.Equal(t, "tontine:ch:dashboard:*", k.Channel("ch:dashboard:*"))

	staging := NewKeyspace(" staging: ")
	assert.Equal(t, "staging:session:s1", staging.Session("s1"))
	assert.Equal(t, "staging:ch:dashboard:u1", staging.Channel("ch:dashboard:u1"))
}

func TestSessionTTL(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	ss := &SessionStore{defaultTTL: time.Hour, now: func() time.Time { return now }}

	assert.Equal(t, time.Hour, ss.ttl(domain.Session{}))
	assert.Equal(t, 10*time.Minute, ss.ttl(domain.Session{ExpiresAt: now.Add(10 * time.Minute)}))
	assert.LessOrEqual(t, ss.ttl(domain.Session{ExpiresAt: now.Add(-time.Second)}), time.Duration(0))
}

// liveClient connects to the server named by TONTINE_TEST_REDIS_ADDR and
// flushes its database. Tests using it are skipped when the variable is unset.
func liveClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TONTINE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TONTINE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{Addr: addr, DB: 15, PoolSize: 4})
	require.NoError(t, err)
	require.NoError(t, c.rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSummaryCacheLive(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	sc := NewSummaryCache(c, time.Minute)

	_, err := sc.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, sc.Set(ctx, domain.DashboardSummary{UserID: "u1", Generation: 2, Stats: domain.Stats{ActiveGroupCount: 3}}))
	// An older generation does not overwrite a newer one.
	require.NoError(t, sc.Set(ctx, domain.DashboardSummary{UserID: "u1", Generation: 1}))

	got, err := sc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Generation)
	assert.Equal(t, 3, got.Stats.ActiveGroupCount)

	require.NoError(t, sc.Invalidate(ctx, "u1"))
	_, err = sc.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionStoreLive(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	ss := NewSessionStore(c, time.Minute)

	s := domain.Session{ID: "s1", Token: "tok", User: domain.User{ID: "u1"}, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, ss.Save(ctx, s))

	got, err := ss.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "u1", got.User.ID)

	require.NoError(t, ss.Delete(ctx, "s1"))
	_, err = ss.Get(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRateLimiterLive(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockManagerLive(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	release, err := lm.Acquire(ctx, "refresh:u1", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "refresh:u1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	release()
	release()

	again, err := lm.Acquire(ctx, "refresh:u1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestSignalBusLive(t *testing.T) {
	c := liveClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sb := NewSignalBus(c)

	ch, err := sb.Subscribe(ctx, "ch:dashboard:*")
	require.NoError(t, err)
	require.NoError(t, sb.Publish(ctx, "ch:dashboard:u1", []byte(`{"x":1}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"x":1}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	for range ch {
	}
}
