package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/domain"
)

type fakeTokens struct {
	token   string
	err     error
	expired atomic.Int32
}

func (f *fakeTokens) Token(context.Context) (string, error) { return f.token, f.err }

func (f *fakeTokens) Expire(context.Context) error {
	f.expired.Add(1)
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api/", Tokens: tokens})
}

func TestClientInjectsHeaders(t *testing.T) {
	var got *http.Request
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, &fakeTokens{token: "tok"})

	var out struct{ OK bool }
	require.NoError(t, c.Post(context.Background(), "/things", map[string]string{"a": "b"}, &out))

	assert.True(t, out.OK)
	assert.Equal(t, "/api/things", got.URL.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "b", body["a"])
}

func TestClientOmitsAuthorizationWithoutToken(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}, &fakeTokens{})

	require.NoError(t, c.Delete(context.Background(), "/x", nil))
	assert.Empty(t, auth)
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		want    error
		message string
	}{
		{http.StatusUnauthorized, `{"message":"Token invalide"}`, domain.ErrAuthExpired, "Token invalide"},
		{http.StatusForbidden, `{}`, domain.ErrUnauthorized, DefaultMessage},
		{http.StatusNotFound, `{"message":"Tontine introuvable"}`, domain.ErrNotFound, "Tontine introuvable"},
		{http.StatusConflict, `{"message":"L'utilisateur existe déjà"}`, domain.ErrAlreadyExists, "L'utilisateur existe déjà"},
		{http.StatusTooManyRequests, ``, domain.ErrRateLimited, DefaultMessage},
		{http.StatusInternalServerError, `not json`, domain.ErrServer, DefaultMessage},
		{http.StatusBadRequest, `{"error":"bad amount"}`, domain.ErrServer, "bad amount"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			tokens := &fakeTokens{token: "tok"}
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, tokens)

			err := c.Get(context.Background(), "/x", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.message, Message(err, "fallback"))

			wantExpired := int32(0)
			if tt.status == http.StatusUnauthorized {
				wantExpired = 1
			}
			assert.Equal(t, wantExpired, tokens.expired.Load())
		})
	}
}

func TestClientExpiredTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, &fakeTokens{err: domain.ErrAuthExpired})

	err := c.Get(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Zero(t, calls.Load())
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url})
	err := c.Get(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, "fallback", Message(err, "fallback"))
}

func TestClientCancelledContextIsNotNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestClientUndecodableBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2`))
	}, nil)

	var out []int
	assert.ErrorIs(t, c.Get(context.Background(), "/x", &out), domain.ErrServer)
}
