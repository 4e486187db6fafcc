package form

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/validation"
)

// Page identifies a client page, both as a form to build and as a
// navigation target.
type Page string

const (
	PageRegister      Page = "register"
	PageLogin         Page = "login"
	PageDashboard     Page = "dashboard"
	PageTontines      Page = "tontines"
	PageCreateTontine Page = "create-tontine"
)

// SessionStarter persists the session created by a successful login.
type SessionStarter interface {
	Begin(ctx context.Context, res domain.LoginResult) (domain.Session, error)
}

// Delays are the pauses between a success message and navigation.
type Delays struct {
	Register time.Duration
	Login    time.Duration
	Create   time.Duration
}

// Deps are the collaborators shared by every form.
type Deps struct {
	Repo     domain.TontineRepository
	Sessions SessionStarter
	// Journal is optional; without it no activity is recorded.
	Journal domain.ActivityStore
	// UserID resolves the acting user for journal entries.
	UserID func(ctx context.Context) string
	Delays Delays
	Now    func() time.Time
	Logger *slog.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) userID(ctx context.Context) string {
	if d.UserID == nil {
		return ""
	}
	return d.UserID(ctx)
}

// record appends a journal entry. Journal failures never fail the form.
func (d Deps) record(ctx context.Context, userID string, kind domain.ActivityKind, message string, detail map[string]any) {
	if d.Journal == nil || userID == "" {
		return
	}
	a := domain.Activity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		Detail:    detail,
		CreatedAt: d.now(),
	}
	if err := d.Journal.Append(ctx, a); err != nil {
		d.logger().WarnContext(ctx, "failed to record activity",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// ForPage builds the bound controller of a form page.
func ForPage(page Page, deps Deps, opts ...Option) (*Controller, error) {
	switch page {
	case PageRegister:
		return NewRegistration(deps, opts...), nil
	case PageLogin:
		return NewLogin(deps, opts...), nil
	case PageCreateTontine:
		return NewCreateTontine(deps, opts...), nil
	default:
		return nil, fmt.Errorf("form: no form on page %q: %w", page, domain.ErrNotFound)
	}
}

// Engine returns the rule set of a form page.
func Engine(page Page) (*validation.Engine, error) {
	switch page {
	case PageRegister:
		return validation.Registration(), nil
	case PageLogin:
		return validation.Login(), nil
	case PageCreateTontine:
		return validation.CreateTontine(), nil
	default:
		return nil, fmt.Errorf("form: no form on page %q: %w", page, domain.ErrNotFound)
	}
}
