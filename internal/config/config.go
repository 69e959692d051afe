package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "WORKSHOP_"

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Log       LogConfig
	Media     MediaConfig
	WebSocket WebSocketConfig
	Scheduler SchedulerConfig

	// CoordinatorMailbox bounds the queued commands per live session.
	CoordinatorMailbox int
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type MediaConfig struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

type WebSocketConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

type SchedulerConfig struct {
	ReminderInterval time.Duration
	NoShowInterval   time.Duration
	NoShowGrace      time.Duration
	SeriesRunAt      string // HH:MM, UTC
	SeriesLookahead  time.Duration
	SeriesHorizon    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			URL:          "postgres://localhost:5432/workshops?sslmode=disable",
			MaxOpenConns: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Media: MediaConfig{
			URL:      "ws://localhost:7880",
			TokenTTL: 10 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 54 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   64,
		},
		Scheduler: SchedulerConfig{
			ReminderInterval: time.Minute,
			NoShowInterval:   30 * time.Second,
			NoShowGrace:      15 * time.Minute,
			SeriesRunAt:      "03:00",
			SeriesLookahead:  30 * 24 * time.Hour,
			SeriesHorizon:    90 * 24 * time.Hour,
		},
		CoordinatorMailbox: 64,
	}
}

// LoadFromEnv overlays WORKSHOP_* variables on the defaults. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_HOST", &cfg.HTTP.Host)
	num("HTTP_PORT", &cfg.HTTP.Port)
	dur("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	dur("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	str("DATABASE_URL", &cfg.Database.URL)
	num("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)

	str("LOG_LEVEL", &cfg.Log.Level)
	flag("LOG_PRETTY", &cfg.Log.Pretty)

	str("MEDIA_URL", &cfg.Media.URL)
	str("MEDIA_API_KEY", &cfg.Media.APIKey)
	str("MEDIA_API_SECRET", &cfg.Media.APISecret)
	dur("MEDIA_TOKEN_TTL", &cfg.Media.TokenTTL)

	dur("WS_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	dur("WS_READ_TIMEOUT", &cfg.WebSocket.ReadTimeout)
	dur("WS_WRITE_TIMEOUT", &cfg.WebSocket.WriteTimeout)
	num("WS_SEND_BUFFER", &cfg.WebSocket.SendBuffer)

	dur("REMINDER_INTERVAL", &cfg.Scheduler.ReminderInterval)
	dur("NOSHOW_INTERVAL", &cfg.Scheduler.NoShowInterval)
	dur("NOSHOW_GRACE", &cfg.Scheduler.NoShowGrace)
	str("SERIES_RUN_AT", &cfg.Scheduler.SeriesRunAt)
	dur("SERIES_LOOKAHEAD", &cfg.Scheduler.SeriesLookahead)
	dur("SERIES_HORIZON", &cfg.Scheduler.SeriesHorizon)

	num("COORDINATOR_MAILBOX", &cfg.CoordinatorMailbox)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.HTTP.Host != "", "HTTP host cannot be empty")
	check(c.HTTP.Port > 0 && c.HTTP.Port <= 65535, "HTTP port must be between 1 and 65535")
	check(c.HTTP.ReadTimeout > 0, "HTTP read timeout must be positive")
	check(c.HTTP.WriteTimeout > 0, "HTTP write timeout must be positive")

	check(c.Database.URL != "", "database URL is required")
	check(c.Database.MaxOpenConns > 0, "database max open connections must be positive")

	check(c.Auth.JWTSecret != "", "%sJWT_SECRET is required", envPrefix)
	check(c.Media.APISecret != "", "%sMEDIA_API_SECRET is required", envPrefix)
	check(c.Media.TokenTTL > 0, "media token TTL must be positive")

	check(c.WebSocket.PingInterval > 0, "websocket ping interval must be positive")
	check(c.WebSocket.ReadTimeout > c.WebSocket.PingInterval, "websocket read timeout must exceed the ping interval")
	check(c.WebSocket.WriteTimeout > 0, "websocket write timeout must be positive")
	check(c.WebSocket.SendBuffer > 0, "websocket send buffer must be positive")

	s := c.Scheduler
	check(s.ReminderInterval > 0, "reminder interval must be positive")
	check(s.NoShowInterval > 0, "no-show interval must be positive")
	check(s.NoShowInterval < s.ReminderInterval, "no-show interval must be shorter than the reminder interval")
	check(s.NoShowGrace > 0, "no-show grace must be positive")
	_, err := time.Parse("15:04", s.SeriesRunAt)
	check(err == nil, "series run time %q must be HH:MM", s.SeriesRunAt)
	check(s.SeriesLookahead > 0, "series lookahead must be positive")
	check(s.SeriesHorizon >= s.SeriesLookahead, "series horizon must not be shorter than the lookahead")

	check(c.CoordinatorMailbox > 0, "coordinator mailbox must be positive")

	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
