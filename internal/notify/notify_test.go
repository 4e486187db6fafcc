package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventRoundDue, " "}, nil)

	require.NoError(t, n.Notify(context.Background(), EventDashboardFailed, "t", "m"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventRoundDue, "t", "m"))
	assert.Equal(t, []string{"t"}, s.titles)

	assert.True(t, n.Enabled(EventRoundDue))
	assert.False(t, n.Enabled(EventSessionExpired))
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, nil)

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, s.titles, 1)
}

func TestNotifyCollectsSenderFailures(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	n := NewNotifier([]Sender{bad, ok}, nil, nil)

	err := n.Notify(context.Background(), EventRoundDue, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, ok.titles, 1, "a failing sender does not block the others")
}

func TestReminderSendsOncePerRound(t *testing.T) {
	s := &recordingSender{name: "rec"}
	r := NewReminder(NewNotifier([]Sender{s}, nil, nil))

	rounds := []domain.UpcomingRound{
		{Round: domain.Round{ID: "r1", GroupID: "g1", Number: 2, Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Amount: 50000}, GroupName: "Famille"},
		{Round: domain.Round{ID: "r2", GroupID: "g1", Number: 3}, GroupName: "Famille"},
	}

	sent, err := r.Remind(context.Background(), rounds)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	sent, err = r.Remind(context.Background(), rounds)
	require.NoError(t, err)
	assert.Empty(t, sent)
	assert.Len(t, s.bodies, 2)
	assert.Contains(t, s.bodies[0], "Famille : tour 2 le 15 janvier 2025")
}

func TestReminderRetriesFailedDelivery(t *testing.T) {
	s := &recordingSender{name: "rec", err: errors.New("down")}
	r := NewReminder(NewNotifier([]Sender{s}, nil, nil))
	rounds := []domain.UpcomingRound{{Round: domain.Round{ID: "r1", GroupID: "g1"}}}

	_, err := r.Remind(context.Background(), rounds)
	require.Error(t, err)

	s.err = nil
	sent, err := r.Remind(context.Background(), rounds)
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL

	require.NoError(t, s.Send(context.Background(), "Titre", "Corps"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Titre*\nCorps", got["text"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "discord: unexpected status 400"))
}
