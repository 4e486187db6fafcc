// Package session owns the authenticated backend session: the bearer token
// and the cached user profile. It decides when a session has expired and
// hands tokens to the HTTP gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tontine/internal/domain"
)

type (
	ctxKey        struct{}
	sessionCtxKey struct{}
)

// WithID returns a context that selects the session with the given ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFrom returns the session ID carried by ctx, if any.
func IDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithSession returns a context carrying an already resolved session.
func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// From returns the session resolved earlier in the request, if any.
func From(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(domain.Session)
	return s, ok
}

// UserID returns the user of the resolved session, or "".
func UserID(ctx context.Context) string {
	s, _ := From(ctx)
	return s.User.ID
}

// Manager resolves, creates and ends sessions on top of a SessionStore.
//
// A Manager built with a fixed ID (CLI use) always works on that session.
// Without one (server use) every Begin mints a new ID and callers select a
// session through WithID.
type Manager struct {
	store     domain.SessionStore
	fixedID   string
	ttl       time.Duration
	now       func() time.Time
	onExpired func(ctx context.Context, s domain.Session)
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithFixedID pins the manager to a single session ID.
func WithFixedID(id string) Option { return func(m *Manager) { m.fixedID = id } }

// WithTTL bounds sessions whose token carries no expiry.
func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// OnExpired registers a hook invoked after an expired session is removed.
func OnExpired(fn func(ctx context.Context, s domain.Session)) Option {
	return func(m *Manager) { m.onExpired = fn }
}

// NewManager creates a Manager backed by store.
func NewManager(store domain.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With(slog.String("component", "session"))
	return m
}

// Begin stores a new session for a successful login.
func (m *Manager) Begin(ctx context.Context, res domain.LoginResult) (domain.Session, error) {
	if res.AccessToken == "" {
		return domain.Session{}, errors.New("session: begin: empty access token")
	}

	id := m.fixedID
	if id == "" {
		id = uuid.NewString()
	}

	now := m.now().UTC()
	s := domain.Session{
		ID:        id,
		Token:     res.AccessToken,
		User:      res.User,
		CreatedAt: now,
	}
	if exp, ok := Expiry(res.AccessToken); ok {
		s.ExpiresAt = exp.UTC()
	} else if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	if err := m.store.Save(ctx, s); err != nil {
		return domain.Session{}, fmt.Errorf("session: begin: %w", err)
	}
	m.logger.InfoContext(ctx, "session started",
		slog.String("session_id", s.ID),
		slog.String("user_id", s.User.ID),
	)
	return s, nil
}

// Current returns the selected session. It returns domain.ErrNoSession when
// there is none and domain.ErrAuthExpired when it has expired, in which case
// the session is also removed.
func (m *Manager) Current(ctx context.Context) (domain.Session, error) {
	id, ok := m.id(ctx)
	if !ok {
		return domain.Session{}, domain.ErrNoSession
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, domain.ErrNoSession
		}
		return domain.Session{}, fmt.Errorf("session: load %s: %w", id, err)
	}

	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		m.expire(ctx, s)
		return domain.Session{}, domain.ErrAuthExpired
	}
	return s, nil
}

// Token returns the bearer token of the selected session, or "" when the
// request should go out unauthenticated.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	if errors.Is(err, domain.ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Expire drops the selected session after the backend rejected its token.
func (m *Manager) Expire(ctx context.Context) error {
	s, err := m.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) || errors.Is(err, domain.ErrAuthExpired) {
			return nil
		}
		return err
	}
	m.expire(ctx, s)
	return nil
}

// End removes the selected session (logout).
func (m *Manager) End(ctx context.Context) error {
	id, ok := m.id(ctx)
	if !ok {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("session: end %s: %w", id, err)
	}
	m.logger.InfoContext(ctx, "session ended", slog.String("session_id", id))
	return nil
}

func (m *Manager) expire(ctx context.Context, s domain.Session) {
	if err := m.store.Delete(ctx, s.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.logger.WarnContext(ctx, "failed to delete expired session",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
	m.logger.InfoContext(ctx, "session expired", slog.String("session_id", s.ID))
	if m.onExpired != nil {
		m.onExpired(ctx, s)
	}
}

func (m *Manager) id(ctx context.Context) (string, bool) {
	if id, ok := IDFrom(ctx); ok {
		return id, true
	}
	return m.fixedID, m.fixedID != ""
}
