package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/tontine/internal/blob/s3"
	"github.com/alanyoungcy/tontine/internal/cache/redis"
	"github.com/alanyoungcy/tontine/internal/config"
	"github.com/alanyoungcy/tontine/internal/crypto"
	"github.com/alanyoungcy/tontine/internal/dashboard"
	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/gateway"
	"github.com/alanyoungcy/tontine/internal/notify"
	"github.com/alanyoungcy/tontine/internal/server/handler"
	"github.com/alanyoungcy/tontine/internal/server/ws"
	"github.com/alanyoungcy/tontine/internal/session"
	"github.com/alanyoungcy/tontine/internal/store/postgres"
	"github.com/alanyoungcy/tontine/internal/store/sqlite"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *prometheus.Registry

	Sessions *session.Manager
	Repo     domain.TontineRepository
	Journal  domain.ActivityStore
	Pipeline *dashboard.Pipeline
	Forms    form.Deps

	// Redis backed; nil unless redis.enabled.
	SummaryCache domain.SummaryCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	Publisher    *ws.Publisher

	// Archiver is set only in modes that need object storage.
	Archiver *s3blob.ActivityArchiver

	Notifier *notify.Notifier
	Reminder *notify.Reminder

	// Health lists the dependencies probed by /api/status.
	Health map[string]handler.Pinger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// serverMode reports whether sessions are selected per request rather than
// pinned to the configured session ID.
func serverMode(mode string) bool {
	return mode == "server" || mode == "full"
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "archive"
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function releasing them in reverse
// order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{
		Registry: prometheus.NewRegistry(),
		Health:   make(map[string]handler.Pinger),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Reminder = notify.NewReminder(deps.Notifier)

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		redisClient = c

		deps.SummaryCache = redis.NewSummaryCache(c, cfg.Dashboard.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(c)
		deps.LockManager = redis.NewLockManager(c)
		deps.SignalBus = redis.NewSignalBus(c)
		deps.Publisher = ws.NewPublisher(deps.SignalBus, cfg.Form.NotificationTTL.Duration)
		deps.Health["redis"] = c
	}

	// --- Sessions ---
	var store domain.SessionStore
	switch cfg.Session.Backend {
	case "memory":
		store = session.NewMemoryStore()
	case "redis":
		if redisClient == nil {
			return fail(fmt.Errorf("wire: session: redis backend without redis"))
		}
		store = redis.NewSessionStore(redisClient, cfg.Session.TTL.Duration)
	default:
		store = session.NewFileStore(cfg.Session.Path, cfg.Session.Password, crypto.Sealer{})
	}
	sessOpts := []session.Option{
		session.WithTTL(cfg.Session.TTL.Duration),
		session.WithLogger(logger),
		session.OnExpired(func(ctx context.Context, s domain.Session) {
			msg := fmt.Sprintf("La session de %s a expiré", s.User.Email)
			if err := deps.Notifier.Notify(ctx, notify.EventSessionExpired, "Session expirée", msg); err != nil {
				logger.WarnContext(ctx, "session expiry notification failed", slog.String("error", err.Error()))
			}
		}),
	}
	if !serverMode(mode) {
		sessOpts = append(sessOpts, session.WithFixedID(cfg.Session.ID))
	}
	deps.Sessions = session.NewManager(store, sessOpts...)

	// --- Backend gateway ---
	client := gateway.New(gateway.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout.Duration,
		RateLimit:  cfg.API.RateLimit,
		Burst:      cfg.API.Burst,
		UserAgent:  cfg.API.UserAgent,
		Tokens:     deps.Sessions,
		Registerer: deps.Registry,
		Logger:     logger,
	})
	deps.Repo = gateway.NewRepository(client)

	// --- Activity journal ---
	switch cfg.Journal.Backend {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Journal = postgres.NewActivityStore(pg.Pool())
		deps.Health["postgres"] = pingFunc(pg.Pool().Ping)
	case "sqlite":
		lite, err := sqlite.Open(cfg.Journal.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = lite.Close() })
		deps.Journal = lite
	}

	// --- Dashboard ---
	deps.Pipeline = dashboard.New(deps.Repo, deps.Journal, dashboard.Options{
		Concurrency:   cfg.Dashboard.Concurrency,
		RecentLimit:   cfg.Dashboard.RecentLimit,
		UpcomingLimit: cfg.Dashboard.UpcomingLimit,
		ActivityLimit: cfg.Dashboard.ActivityLimit,
		Registerer:    deps.Registry,
		Logger:        logger,
		Now:           time.Now,
	})
	wireCommitHooks(deps, cfg.Dashboard.DueWithin.Duration, time.Now, logger)

	deps.Forms = form.Deps{
		Repo:     deps.Repo,
		Sessions: deps.Sessions,
		Journal:  deps.Journal,
		UserID:   actingUser(deps.Sessions),
		Delays: form.Delays{
			Register: cfg.Form.RegisterDelay.Duration,
			Login:    cfg.Form.LoginDelay.Duration,
			Create:   cfg.Form.CreateDelay.Duration,
		},
		Logger: logger,
	}

	// --- S3 archive ---
	if needsS3(mode) {
		if deps.Journal == nil {
			return fail(fmt.Errorf("wire: archive needs a journal backend"))
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Health["s3"] = pingFunc(s3Client.Health)
		deps.Archiver = s3blob.NewArchiver(
			deps.Journal,
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			cfg.Archive.Prefix,
			logger,
		)
	}

	return deps, cleanup, nil
}

// actingUser resolves the user of the request session or, for the CLI, of
// the pinned session.
func actingUser(m *session.Manager) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		if id := session.UserID(ctx); id != "" {
			return id
		}
		s, err := m.Current(ctx)
		if err != nil {
			return ""
		}
		return s.User.ID
	}
}

// wireCommitHooks fans each committed summary out to the shared cache, the
// live clients and the due-round reminder.
func wireCommitHooks(deps *Dependencies, dueWithin time.Duration, now func() time.Time, logger *slog.Logger) {
	if deps.SummaryCache != nil {
		deps.Pipeline.OnCommit(func(ctx context.Context, s domain.DashboardSummary) {
			if err := deps.SummaryCache.Set(ctx, s); err != nil {
				logger.WarnContext(ctx, "summary cache write failed", slog.String("error", err.Error()))
			}
		})
	}
	if deps.Publisher != nil {
		deps.Pipeline.OnCommit(func(ctx context.Context, s domain.DashboardSummary) {
			if err := deps.Publisher.PublishSummary(ctx, s); err != nil {
				logger.WarnContext(ctx, "summary publish failed", slog.String("error", err.Error()))
			}
		})
	}
	if deps.Notifier.Enabled(notify.EventRoundDue) && dueWithin > 0 {
		deps.Pipeline.OnCommit(func(ctx context.Context, s domain.DashboardSummary) {
			due := dashboard.Due(s.UpcomingRounds, now(), dueWithin)
			if _, err := deps.Reminder.Remind(ctx, due); err != nil {
				logger.WarnContext(ctx, "round reminder failed", slog.String("error", err.Error()))
			}
		})
	}
}
