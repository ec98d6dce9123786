package config

import (
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("USD_VND_RATE", "25000")
	t.Setenv("DEPOSIT_TTL", "45m")
	t.Setenv("PAYPAL_MODE", "live")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.USDToVNDRate.String() != "25000" {
		t.Fatalf("expected rate 25000, got %s", cfg.USDToVNDRate)
	}
	if cfg.DepositTTL != 45*time.Minute {
		t.Fatalf("expected 45m deposit ttl, got %s", cfg.DepositTTL)
	}
	if !cfg.PayPalLive() {
		t.Fatalf("expected live paypal mode")
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("USD_VND_RATE", "-3")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	t.Setenv("RATE_LIMIT_ATTEMPTS", "many")

	cfg := Load()

	if cfg.USDToVNDRate.String() != "24000" {
		t.Fatalf("expected default rate, got %s", cfg.USDToVNDRate)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Fatalf("expected default window, got %s", cfg.RateLimitWindow)
	}
	if cfg.RateLimitAttempts != 10 {
		t.Fatalf("expected default attempts, got %d", cfg.RateLimitAttempts)
	}
}
