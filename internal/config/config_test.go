package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "jwt"
	cfg.Media.APISecret = "media"
	return cfg
}

func TestDefaultConfig_NeedsSecrets(t *testing.T) {
	err := DefaultConfig().Validate()
	if err == nil {
		t.Fatal("defaults must not validate without secrets")
	}
	for _, want := range []string{"JWT_SECRET", "MEDIA_API_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults with secrets: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"read timeout under ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }},
		{"no-show slower than reminders", func(c *Config) { c.Scheduler.NoShowInterval = 2 * time.Minute }},
		{"series run time", func(c *Config) { c.Scheduler.SeriesRunAt = "3am" }},
		{"horizon under lookahead", func(c *Config) { c.Scheduler.SeriesHorizon = time.Hour }},
		{"mailbox", func(c *Config) { c.CoordinatorMailbox = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKSHOP_HTTP_PORT", "9090")
	t.Setenv("WORKSHOP_JWT_SECRET", "s3cret")
	t.Setenv("WORKSHOP_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("WORKSHOP_NOSHOW_GRACE", "20m")
	t.Setenv("WORKSHOP_LOG_PRETTY", "true")
	t.Setenv("WORKSHOP_SERIES_RUN_AT", "04:30")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.HTTP.Addr() != "0.0.0.0:9090" {
		t.Errorf("port = %d addr = %s", cfg.HTTP.Port, cfg.HTTP.Addr())
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Scheduler.NoShowGrace != 20*time.Minute {
		t.Errorf("NoShowGrace = %s", cfg.Scheduler.NoShowGrace)
	}
	if !cfg.Log.Pretty || cfg.Scheduler.SeriesRunAt != "04:30" {
		t.Errorf("pretty=%v runAt=%s", cfg.Log.Pretty, cfg.Scheduler.SeriesRunAt)
	}
	if cfg.Scheduler.ReminderInterval != time.Minute {
		t.Errorf("unset ReminderInterval = %s, want the default", cfg.Scheduler.ReminderInterval)
	}
}

func TestLoadFromEnv_RejectsMalformedValues(t *testing.T) {
	t.Setenv("WORKSHOP_HTTP_PORT", "eighty")
	t.Setenv("WORKSHOP_REMINDER_INTERVAL", "soon")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"WORKSHOP_HTTP_PORT", "WORKSHOP_REMINDER_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}
