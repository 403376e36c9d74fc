package service

import (
	"context"
	"sync"
	"time"

	"interview-copilot-service/src/models"
)

// settingsCacheTTL keeps admin settings reads off the hot path. Stale reads
// within the window are acceptable; Invalidate forces the next read through.
const settingsCacheTTL = 5 * time.Second

// SettingsStore loads the admin settings row.
type SettingsStore interface {
	Get(ctx context.Context) (*models.AdminSettings, error)
}

// SettingsCache is a read-through cache over the admin settings row with a
// short TTL. It is safe for concurrent use.
type SettingsCache struct {
	store SettingsStore
	ttl   time.Duration

	mu        sync.RWMutex
	cached    *models.AdminSettings
	fetchedAt time.Time

	now func() time.Time
}

func NewSettingsCache(store SettingsStore) *SettingsCache {
	return &SettingsCache{
		store: store,
		ttl:   settingsCacheTTL,
		now:   time.Now,
	}
}

// Settings returns the current admin settings, refreshing from the store when
// the cached copy is older than the TTL.
func (c *SettingsCache) Settings(ctx context.Context) (*models.AdminSettings, error) {
	c.mu.RLock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		cached := *c.cached
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	fresh, err := c.store.Get(ctx)
	if err != nil {
		// Serve the stale copy rather than failing when one exists.
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.cached != nil {
			cached := *c.cached
			return &cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cached = fresh
	c.fetchedAt = c.now()
	c.mu.Unlock()

	copied := *fresh
	return &copied, nil
}

// BillingConfig returns the billing parameters derived from current settings.
func (c *SettingsCache) BillingConfig(ctx context.Context) (models.BillingConfig, error) {
	settings, err := c.Settings(ctx)
	if err != nil {
		return models.BillingConfig{}, err
	}
	return settings.Billing(), nil
}

// Invalidate drops the cached copy so the next read hits the store. Called
// after admin updates so changes apply without waiting out the TTL.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
