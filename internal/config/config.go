// Package config defines the top-level configuration for the tontine client
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TONTINE_* environment variables.
type Config struct {
	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Login     LoginConfig     `toml:"login"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Form      FormConfig      `toml:"form"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Journal   JournalConfig   `toml:"journal"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	LogFormat string          `toml:"log_format"`
}

// APIConfig holds the backend REST endpoint and client-side limits.
type APIConfig struct {
	BaseURL   string   `toml:"base_url"`
	Timeout   duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"` // requests per second, 0 disables
	Burst     int      `toml:"burst"`
	UserAgent string   `toml:"user_agent"`
}

// SessionConfig controls where the bearer token and cached profile live.
type SessionConfig struct {
	// Backend is one of "file", "memory" or "redis".
	Backend  string   `toml:"backend"`
	ID       string   `toml:"id"`
	Path     string   `toml:"path"`
	Password string   `toml:"password"`
	TTL      duration `toml:"ttl"`
}

// LoginConfig holds the credentials used by the login mode.
type LoginConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// DashboardConfig holds aggregation parameters.
type DashboardConfig struct {
	UserID          string   `toml:"user_id"`
	RefreshInterval duration `toml:"refresh_interval"`
	Concurrency     int      `toml:"concurrency"`
	RecentLimit     int      `toml:"recent_limit"`
	UpcomingLimit   int      `toml:"upcoming_limit"`
	ActivityLimit   int      `toml:"activity_limit"`
	DueWithin       duration `toml:"due_within"`
	CacheTTL        duration `toml:"cache_ttl"`
}

// FormConfig holds the post-submit navigation delays.
type FormConfig struct {
	RegisterDelay   duration `toml:"register_delay"`
	LoginDelay      duration `toml:"login_delay"`
	CreateDelay     duration `toml:"create_delay"`
	NotificationTTL duration `toml:"notification_ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// Namespace prefixes every key and pub/sub channel.
	Namespace string `toml:"namespace"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// JournalConfig selects the activity journal backend.
type JournalConfig struct {
	// Backend is one of "postgres", "sqlite" or "none".
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds journal archival parameters.
type ArchiveConfig struct {
	RetentionDays int    `toml:"retention_days"`
	Prefix        string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   duration{30 * time.Second},
			RateLimit: 20,
			Burst:     10,
			UserAgent: "tontine-client/1.0",
		},
		Session: SessionConfig{
			Backend: "file",
			ID:      "default",
			Path:    ".tontine/session.json",
			TTL:     duration{24 * time.Hour},
		},
		Dashboard: DashboardConfig{
			RefreshInterval: duration{time.Minute},
			Concurrency:     8,
			RecentLimit:     5,
			UpcomingLimit:   3,
			ActivityLimit:   5,
			DueWithin:       duration{72 * time.Hour},
			CacheTTL:        duration{5 * time.Minute},
		},
		Form: FormConfig{
			RegisterDelay:   duration{2 * time.Second},
			LoginDelay:      duration{time.Second},
			CreateDelay:     duration{1500 * time.Millisecond},
			NotificationTTL: duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			Namespace:  "tontine",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tontine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Journal: JournalConfig{
			Backend:    "sqlite",
			SQLitePath: ".tontine/journal.db",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tontine-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Prefix:        "archive",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"round_due", "dashboard_failed", "session_expired"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tontine",
		},
		Mode:      "dashboard",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"login":     true,
	"logout":    true,
	"dashboard": true,
	"monitor":   true,
	"server":    true,
	"archive":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSessionBackends = map[string]bool{"file": true, "memory": true, "redis": true}

var validJournalBackends = map[string]bool{"postgres": true, "sqlite": true, "none": true}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: login, logout, dashboard, monitor, server, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api: base_url must be an absolute URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, "api: rate_limit must be >= 0")
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		errs = append(errs, "api: burst must be >= 1 when rate_limit is set")
	}

	// Session
	if !validSessionBackends[c.Session.Backend] {
		errs = append(errs, fmt.Sprintf("session: unknown backend %q (valid: file, memory, redis)", c.Session.Backend))
	}
	if c.Session.Backend == "file" {
		if c.Session.Path == "" {
			errs = append(errs, "session: path must be set for the file backend")
		}
		if c.Session.Password == "" {
			errs = append(errs, "session: password is required for the file backend")
		}
	}
	if c.Session.Backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, "session: redis backend requires redis.enabled")
	}
	if c.Session.ID == "" {
		errs = append(errs, "session: id must not be empty")
	}

	// Login
	if mode == "login" && (c.Login.Email == "" || c.Login.Password == "") {
		errs = append(errs, "login: email and password are required for mode login")
	}

	// Dashboard
	if c.Dashboard.Concurrency < 1 {
		errs = append(errs, "dashboard: concurrency must be >= 1")
	}
	if c.Dashboard.RecentLimit < 1 || c.Dashboard.UpcomingLimit < 1 || c.Dashboard.ActivityLimit < 1 {
		errs = append(errs, "dashboard: recent_limit, upcoming_limit and activity_limit must be >= 1")
	}
	if (mode == "monitor" || mode == "full") && c.Dashboard.RefreshInterval.Duration <= 0 {
		errs = append(errs, "dashboard: refresh_interval must be > 0 for mode "+mode)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if (mode == "server" || mode == "full") && !c.Redis.Enabled {
		errs = append(errs, "redis: enabled is required for mode "+mode)
	}

	// Journal / Postgres
	if !validJournalBackends[c.Journal.Backend] {
		errs = append(errs, fmt.Sprintf("journal: unknown backend %q (valid: postgres, sqlite, none)", c.Journal.Backend))
	}
	if c.Journal.Backend == "sqlite" && c.Journal.SQLitePath == "" {
		errs = append(errs, "journal: sqlite_path must be set for the sqlite backend")
	}
	if c.Journal.Backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Archive
	if mode == "archive" {
		if c.Journal.Backend == "none" {
			errs = append(errs, "archive: a journal backend is required for mode archive")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
