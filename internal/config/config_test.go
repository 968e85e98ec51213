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
	if cfg.DefaultWorkdayStart != "09:00" || cfg.DefaultWorkdayEnd != "17:00" {
		t.Errorf("unexpected default workday window: %s-%s", cfg.DefaultWorkdayStart, cfg.DefaultWorkdayEnd)
	}
	if cfg.DefaultSlotMinutes != 30 {
		t.Errorf("expected default slot minutes 30, got %d", cfg.DefaultSlotMinutes)
	}
	if cfg.EnrichmentTimeout != 10*time.Second {
		t.Errorf("expected 10s enrichment timeout, got %s", cfg.EnrichmentTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SLOT_CACHE_TTL", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("MEETING_PROVIDER", "Zoom ")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.SlotCacheTTL != 45*time.Second {
		t.Errorf("expected 45s cache TTL, got %s", cfg.SlotCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MeetingProvider != "zoom" {
		t.Errorf("expected normalized provider, got %q", cfg.MeetingProvider)
	}
	if !cfg.RedisTLS {
		t.Errorf("expected redis TLS enabled")
	}
}
