package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.ChatRequestTimeout != 30*time.Second {
		t.Errorf("expected default chat timeout 30s, got %s", cfg.ChatRequestTimeout)
	}
	if cfg.EmailProvider != "stub" {
		t.Errorf("expected default email provider stub, got %s", cfg.EmailProvider)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_REQUEST_TIMEOUT", "45s")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pixelcraft.studio, https://www.pixelcraft.studio")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.ChatRequestTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %s", cfg.ChatRequestTimeout)
	}
	if cfg.RateLimitBurst != 7 {
		t.Errorf("expected burst 7, got %d", cfg.RateLimitBurst)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://www.pixelcraft.studio" {
		t.Errorf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("CHAT_REQUEST_TIMEOUT", "soon")

	cfg := Load()

	if cfg.RateLimitBurst != 20 {
		t.Errorf("expected fallback burst 20, got %d", cfg.RateLimitBurst)
	}
	if cfg.ChatRequestTimeout != 30*time.Second {
		t.Errorf("expected fallback timeout 30s, got %s", cfg.ChatRequestTimeout)
	}
}
