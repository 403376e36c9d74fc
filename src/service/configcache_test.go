package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"interview-copilot-service/src/models"
)

type countingSettingsStore struct {
	settings models.AdminSettings
	err      error
	calls    int
}

func (s *countingSettingsStore) Get(ctx context.Context) (*models.AdminSettings, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := s.settings
	return &copied, nil
}

func TestSettingsCacheServesWithinTTL(t *testing.T) {
	store := &countingSettingsStore{settings: models.AdminSettings{SessionGraceMinutes: 3}}
	cache := NewSettingsCache(store)

	current := time.Now()
	cache.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		settings, err := cache.Settings(context.Background())
		if err != nil {
			t.Fatalf("Settings: %v", err)
		}
		if settings.SessionGraceMinutes != 3 {
			t.Errorf("SessionGraceMinutes = %d", settings.SessionGraceMinutes)
		}
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1 within TTL", store.calls)
	}

	current = current.Add(settingsCacheTTL + time.Second)
	if _, err := cache.Settings(context.Background()); err != nil {
		t.Fatalf("Settings after TTL: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 after TTL expiry", store.calls)
	}
}

func TestSettingsCacheInvalidate(t *testing.T) {
	store := &countingSettingsStore{settings: models.AdminSettings{SessionGraceMinutes: 3}}
	cache := NewSettingsCache(store)

	if _, err := cache.Settings(context.Background()); err != nil {
		t.Fatalf("Settings: %v", err)
	}

	store.settings.SessionGraceMinutes = 5
	cache.Invalidate()

	settings, err := cache.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings after invalidate: %v", err)
	}
	if settings.SessionGraceMinutes != 5 {
		t.Errorf("SessionGraceMinutes = %d, want 5 after invalidate", settings.SessionGraceMinutes)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}

func TestSettingsCacheServesStaleOnStoreError(t *testing.T) {
	store := &countingSettingsStore{settings: models.AdminSettings{SessionGraceMinutes: 3}}
	cache := NewSettingsCache(store)

	current := time.Now()
	cache.now = func() time.Time { return current }

	if _, err := cache.Settings(context.Background()); err != nil {
		t.Fatalf("Settings: %v", err)
	}

	store.err = errors.New("db down")
	current = current.Add(settingsCacheTTL + time.Second)

	settings, err := cache.Settings(context.Background())
	if err != nil {
		t.Fatalf("expected stale copy, got error: %v", err)
	}
	if settings.SessionGraceMinutes != 3 {
		t.Errorf("SessionGraceMinutes = %d, want stale 3", settings.SessionGraceMinutes)
	}
}

func TestBillingConfigDerivation(t *testing.T) {
	store := &countingSettingsStore{settings: models.AdminSettings{
		SessionGraceMinutes:    3,
		SessionHardStopEnabled: true,
	}}
	cache := NewSettingsCache(store)

	cfg, err := cache.BillingConfig(context.Background())
	if err != nil {
		t.Fatalf("BillingConfig: %v", err)
	}
	if cfg.GraceSeconds != 180 {
		t.Errorf("GraceSeconds = %d, want 180", cfg.GraceSeconds)
	}
	if !cfg.HardStopEnabled {
		t.Error("HardStopEnabled = false")
	}
}
