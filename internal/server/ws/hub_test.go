package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/domain"
)

type chanBus struct {
	ch        chan []byte
	published []string
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.published = append(b.published, channel)
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

type userResolver struct{ userID string }

func (u userResolver) Current(context.Context) (domain.Session, error) {
	if u.userID == "" {
		return domain.Session{}, domain.ErrNoSession
	}
	return domain.Session{User: domain.User{ID: u.userID}}, nil
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func startHub(t *testing.T, bus *chanBus, resolver SessionResolver, cfg Config) (*Hub, string) {
	t.Helper()
	hub := NewHub(bus, resolver, slog.Default(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubRoutesByUser(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 8)}
	hub, url := startHub(t, bus, userResolver{userID: "u1"}, Config{
		Snapshot: func(context.Context, string) (domain.DashboardSummary, bool) {
			return domain.DashboardSummary{UserID: "u1", Generation: 1}, true
		},
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, TypeStatus, readEnvelope(t, conn).Type)
	snap := readEnvelope(t, conn)
	assert.Equal(t, TypeDashboard, snap.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	pub := NewPublisher(bus, 5*time.Second)
	require.NoError(t, pub.PublishSummary(context.Background(), domain.DashboardSummary{UserID: "u2", Generation: 9}))
	require.NoError(t, pub.PublishNotification(context.Background(), "u1", "success", "Données actualisées"))
	assert.Equal(t, []string{"ch:dashboard:u2", "ch:dashboard:u1"}, bus.published)

	// The u2 summary is not delivered; the next frame is u1's notification.
	env := readEnvelope(t, conn)
	assert.Equal(t, TypeNotification, env.Type)
	var n Notification
	require.NoError(t, json.Unmarshal(env.Payload, &n))
	assert.Equal(t, "Données actualisées", n.Text)
	assert.Equal(t, int64(5000), n.TTLMS)
}

func TestHubRejectsAnonymous(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	_, url := startHub(t, bus, userResolver{}, Config{})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHubAfterShutdown(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	hub := NewHub(bus, userResolver{userID: "u1"}, slog.Default(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()

	returned := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r)
		returned <- struct{}{}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	<-returned
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	// The open connection's read loop exits once the hub closed it.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade handler blocked after the hub stopped")
	}
	assert.Zero(t, hub.ClientCount())
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "ch:dashboard:u1", Channel("u1"))
	assert.True(t, strings.HasPrefix(Channel("x"), strings.TrimSuffix(ChannelPattern, "*")))
}
