package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tontine/internal/dashboard"
	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/notify"
	"github.com/alanyoungcy/tontine/internal/present"
	"github.com/alanyoungcy/tontine/internal/server"
	"github.com/alanyoungcy/tontine/internal/server/handler"
	"github.com/alanyoungcy/tontine/internal/server/ws"
	"github.com/alanyoungcy/tontine/internal/session"
	"github.com/alanyoungcy/tontine/internal/validation"
)

// LoginMode submits the configured credentials through the login form and
// stores the resulting session.
func (a *App) LoginMode(ctx context.Context, deps *Dependencies) error {
	c := form.NewLogin(deps.Forms)
	c.OnFieldChange(validation.FieldEmail, validation.TextValue(a.cfg.Login.Email))
	c.OnFieldChange(validation.FieldPassword, validation.TextValue(a.cfg.Login.Password))

	out, err := c.Submit(ctx)
	fmt.Fprintln(a.out, out.Message.Text)
	if err != nil {
		return fmt.Errorf("login mode: %w", err)
	}
	return nil
}

// LogoutMode removes the stored session.
func (a *App) LogoutMode(ctx context.Context, deps *Dependencies) error {
	if err := deps.Sessions.End(ctx); err != nil {
		return fmt.Errorf("logout mode: %w", err)
	}
	fmt.Fprintln(a.out, "Déconnexion réussie")
	return nil
}

// DashboardMode aggregates the dashboard once and prints it.
func (a *App) DashboardMode(ctx context.Context, deps *Dependencies) error {
	ctx = session.WithID(ctx, a.cfg.Session.ID)
	user, err := a.dashboardUser(ctx, deps)
	if err != nil {
		fmt.Fprintln(a.out, "Session expirée, veuillez vous reconnecter")
		return fmt.Errorf("dashboard mode: %w", err)
	}

	s, err := deps.Pipeline.Refresh(ctx, user.ID)
	if err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
		return fmt.Errorf("dashboard mode: %w", err)
	}
	if err := present.Render(a.out, present.Dashboard(s, user)); err != nil {
		return fmt.Errorf("dashboard mode: render: %w", err)
	}
	if notice, ok := present.RefreshNotice(s); !ok {
		fmt.Fprintln(a.out, notice)
	}
	return nil
}

// MonitorMode refreshes the dashboard every refresh_interval until ctx is
// cancelled. Committed summaries flow through the commit hooks.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Duration("interval", a.cfg.Dashboard.RefreshInterval.Duration),
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runMonitor(ctx, deps) })
	return g.Wait()
}

// ServerMode serves the HTTP API and the WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode copies journal entries older than the retention window to
// object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	before := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	n, err := deps.Archiver.ArchiveActivity(ctx, before)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("entries", n),
		slog.Time("before", before),
	)
	fmt.Fprintf(a.out, "%d entrées archivées\n", n)
	return nil
}

// FullMode runs the refresh loop and the HTTP server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runMonitor(ctx, deps) })
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// dashboardUser returns the signed-in user, with dashboard.user_id
// overriding the ID when set.
func (a *App) dashboardUser(ctx context.Context, deps *Dependencies) (domain.User, error) {
	s, err := deps.Sessions.Current(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user := s.User
	if a.cfg.Dashboard.UserID != "" {
		user.ID = a.cfg.Dashboard.UserID
	}
	return user, nil
}

func (a *App) runMonitor(ctx context.Context, deps *Dependencies) error {
	ctx = session.WithID(ctx, a.cfg.Session.ID)
	ticker := time.NewTicker(a.cfg.Dashboard.RefreshInterval.Duration)
	defer ticker.Stop()

	for {
		a.monitorTick(ctx, deps)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) monitorTick(ctx context.Context, deps *Dependencies) {
	user, err := a.dashboardUser(ctx, deps)
	if err != nil {
		a.logger.WarnContext(ctx, "monitor: no usable session", slog.String("error", err.Error()))
		return
	}

	s, err := deps.Pipeline.Refresh(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, dashboard.ErrSuperseded) && ctx.Err() == nil {
			a.logger.WarnContext(ctx, "monitor: refresh failed", slog.String("error", err.Error()))
		}
		return
	}

	notice, ok := present.RefreshNotice(s)
	a.logger.InfoContext(ctx, "monitor: dashboard refreshed",
		slog.String("user_id", user.ID),
		slog.Uint64("generation", s.Generation),
		slog.Bool("partial", s.Partial),
	)
	if !ok {
		if err := deps.Notifier.Notify(ctx, notify.EventDashboardFailed, "Tableau de bord", notice); err != nil {
			a.logger.WarnContext(ctx, "monitor: notification failed", slog.String("error", err.Error()))
		}
	}
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, deps.Sessions, a.logger, ws.Config{
		StartedAt:   startedAt,
		CheckOrigin: originChecker(a.cfg.Server.CORSOrigins),
		Snapshot: func(ctx context.Context, userID string) (domain.DashboardSummary, bool) {
			if s, ok := deps.Pipeline.Latest(userID); ok {
				return s, true
			}
			if deps.SummaryCache == nil {
				return domain.DashboardSummary{}, false
			}
			s, err := deps.SummaryCache.Get(ctx, userID)
			return s, err == nil
		},
	})
	g.Go(func() error { return hub.Run(ctx) })

	// The handler tolerates a nil notifier; avoid a typed nil.
	var notifier handler.Notifier
	if deps.Publisher != nil {
		notifier = deps.Publisher
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.cfg.Mode, startedAt, deps.Health, hub.ClientCount, a.logger),
			Auth:      handler.NewAuthHandler(deps.Forms, deps.Sessions, a.logger),
			Forms:     handler.NewFormHandler(deps.Forms, a.logger),
			Dashboard: handler.NewDashboardHandler(deps.Pipeline, deps.SummaryCache, deps.LockManager, notifier, deps.Journal, a.logger),
			Tontines:  handler.NewTontineHandler(deps.Forms, a.logger),
		},
		server.Deps{
			Sessions: deps.Sessions,
			Limiter:  deps.RateLimiter,
			Gatherer: deps.Registry,
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// originChecker accepts WebSocket upgrades from the configured CORS origins,
// or from anywhere when none are configured.
func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
