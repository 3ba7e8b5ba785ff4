// Package config loads server and CLI settings. Precedence follows
// viper's usual order: environment > config file > default. All keys
// can be set via TASKMESH_* variables (dots become underscores); the
// handful of deployment-standard names (DATABASE_URL, REDIS_URL,
// JWT_SECRET, PORT, ENV) are bound as bare aliases.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimit configures one throttle scope.
type RateLimit struct {
	MaxRequests   int
	WindowSeconds int
	Burst         int
}

// Window returns the scope's window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Config is the resolved runtime configuration shared by the server
// and taskmeshctl.
type Config struct {
	Env  string
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	PushDeadline time.Duration

	DatabaseURL string
	RedisURL    string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SyncPush           RateLimit
	SyncPull           RateLimit
	ConflictResolution RateLimit

	TombstoneRetentionDays int
	SyncLogRetentionDays   int
	CleanupInterval        time.Duration
}

// Dev reports whether the process runs with development conveniences
// (console logging).
func (c *Config) Dev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// Load reads configuration, optionally from an explicit file path.
// A missing config file is not an error; environment and defaults
// still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "production")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.push_deadline", "30s")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", "1h")
	v.SetDefault("jwt.refresh_ttl", "720h")
	v.SetDefault("ratelimit.sync_push.max_requests", 60)
	v.SetDefault("ratelimit.sync_push.window_seconds", 60)
	v.SetDefault("ratelimit.sync_push.burst", 10)
	v.SetDefault("ratelimit.sync_pull.max_requests", 120)
	v.SetDefault("ratelimit.sync_pull.window_seconds", 60)
	v.SetDefault("ratelimit.sync_pull.burst", 20)
	v.SetDefault("ratelimit.conflict_resolution.max_requests", 30)
	v.SetDefault("ratelimit.conflict_resolution.window_seconds", 60)
	v.SetDefault("ratelimit.conflict_resolution.burst", 5)
	v.SetDefault("retention.tombstone_days", 90)
	v.SetDefault("retention.synclog_days", 30)
	v.SetDefault("cleanup.interval", "1h")

	v.SetEnvPrefix("TASKMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment-standard variable names.
	_ = v.BindEnv("env", "TASKMESH_ENV", "ENV")
	_ = v.BindEnv("http.addr", "TASKMESH_HTTP_ADDR", "ADDR")
	_ = v.BindEnv("database.url", "TASKMESH_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "TASKMESH_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("jwt.secret", "TASKMESH_JWT_SECRET", "JWT_SECRET")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskmesh")
		// Missing file is fine; env and defaults remain.
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		Env:          v.GetString("env"),
		Addr:         v.GetString("http.addr"),
		ReadTimeout:  v.GetDuration("http.read_timeout"),
		WriteTimeout: v.GetDuration("http.write_timeout"),
		IdleTimeout:  v.GetDuration("http.idle_timeout"),
		PushDeadline: v.GetDuration("http.push_deadline"),
		DatabaseURL:  v.GetString("database.url"),
		RedisURL:     v.GetString("redis.url"),
		JWTSecret:    v.GetString("jwt.secret"),
		AccessTTL:    v.GetDuration("jwt.access_ttl"),
		RefreshTTL:   v.GetDuration("jwt.refresh_ttl"),
		SyncPush: RateLimit{
			MaxRequests:   v.GetInt("ratelimit.sync_push.max_requests"),
			WindowSeconds: v.GetInt("ratelimit.sync_push.window_seconds"),
			Burst:         v.GetInt("ratelimit.sync_push.burst"),
		},
		SyncPull: RateLimit{
			MaxRequests:   v.GetInt("ratelimit.sync_pull.max_requests"),
			WindowSeconds: v.GetInt("ratelimit.sync_pull.window_seconds"),
			Burst:         v.GetInt("ratelimit.sync_pull.burst"),
		},
		ConflictResolution: RateLimit{
			MaxRequests:   v.GetInt("ratelimit.conflict_resolution.max_requests"),
			WindowSeconds: v.GetInt("ratelimit.conflict_resolution.window_seconds"),
			Burst:         v.GetInt("ratelimit.conflict_resolution.burst"),
		},
		TombstoneRetentionDays: v.GetInt("retention.tombstone_days"),
		SyncLogRetentionDays:   v.GetInt("retention.synclog_days"),
		CleanupInterval:        v.GetDuration("cleanup.interval"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database.url (DATABASE_URL) is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt.secret (JWT_SECRET) is required")
	}

	return cfg, nil
}
