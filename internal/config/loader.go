package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TONTINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TONTINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── API ──
	setStr(&cfg.API.BaseURL, "TONTINE_API_BASE_URL")
	setDuration(&cfg.API.Timeout, "TONTINE_API_TIMEOUT")
	setFloat64(&cfg.API.RateLimit, "TONTINE_API_RATE_LIMIT")
	setInt(&cfg.API.Burst, "TONTINE_API_BURST")
	setStr(&cfg.API.UserAgent, "TONTINE_API_USER_AGENT")

	// ── Session ──
	setStr(&cfg.Session.Backend, "TONTINE_SESSION_BACKEND")
	setStr(&cfg.Session.ID, "TONTINE_SESSION_ID")
	setStr(&cfg.Session.Path, "TONTINE_SESSION_PATH")
	setStr(&cfg.Session.Password, "TONTINE_SESSION_PASSWORD")
	setDuration(&cfg.Session.TTL, "TONTINE_SESSION_TTL")

	// ── Login ──
	setStr(&cfg.Login.Email, "TONTINE_LOGIN_EMAIL")
	setStr(&cfg.Login.Password, "TONTINE_LOGIN_PASSWORD")

	// ── Dashboard ──
	setStr(&cfg.Dashboard.UserID, "TONTINE_DASHBOARD_USER_ID")
	setDuration(&cfg.Dashboard.RefreshInterval, "TONTINE_DASHBOARD_REFRESH_INTERVAL")
	setInt(&cfg.Dashboard.Concurrency, "TONTINE_DASHBOARD_CONCURRENCY")
	setInt(&cfg.Dashboard.RecentLimit, "TONTINE_DASHBOARD_RECENT_LIMIT")
	setInt(&cfg.Dashboard.UpcomingLimit, "TONTINE_DASHBOARD_UPCOMING_LIMIT")
	setInt(&cfg.Dashboard.ActivityLimit, "TONTINE_DASHBOARD_ACTIVITY_LIMIT")
	setDuration(&cfg.Dashboard.DueWithin, "TONTINE_DASHBOARD_DUE_WITHIN")
	setDuration(&cfg.Dashboard.CacheTTL, "TONTINE_DASHBOARD_CACHE_TTL")

	// ── Form ──
	setDuration(&cfg.Form.RegisterDelay, "TONTINE_FORM_REGISTER_DELAY")
	setDuration(&cfg.Form.LoginDelay, "TONTINE_FORM_LOGIN_DELAY")
	setDuration(&cfg.Form.CreateDelay, "TONTINE_FORM_CREATE_DELAY")
	setDuration(&cfg.Form.NotificationTTL, "TONTINE_FORM_NOTIFICATION_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TONTINE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TONTINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TONTINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TONTINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TONTINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TONTINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TONTINE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "TONTINE_REDIS_NAMESPACE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TONTINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TONTINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TONTINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TONTINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TONTINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TONTINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TONTINE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TONTINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TONTINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TONTINE_POSTGRES_RUN_MIGRATIONS")

	// ── Journal ──
	setStr(&cfg.Journal.Backend, "TONTINE_JOURNAL_BACKEND")
	setStr(&cfg.Journal.SQLitePath, "TONTINE_JOURNAL_SQLITE_PATH")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TONTINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TONTINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TONTINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TONTINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TONTINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TONTINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TONTINE_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "TONTINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "TONTINE_ARCHIVE_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "TONTINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TONTINE_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "TONTINE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TONTINE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TONTINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TONTINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TONTINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TONTINE_NOTIFY_EVENTS")

	// ── Telemetry ──
	setStr(&cfg.Telemetry.OTLPEndpoint, "TONTINE_TELEMETRY_OTLP_ENDPOINT")
	setStr(&cfg.Telemetry.ServiceName, "TONTINE_TELEMETRY_SERVICE_NAME")

	// ── Top-level ──
	setStr(&cfg.Mode, "TONTINE_MODE")
	setStr(&cfg.LogLevel, "TONTINE_LOG_LEVEL")
	setStr(&cfg.LogFormat, "TONTINE_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
