// Package runtimecache holds the ephemeral per-session runtime status
// advertised by the voice-agent bridge. Entries live in process memory only
// and are swept on a fixed interval; nothing here is ever persisted.
package runtimecache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/konsulhq/konsul/pkg/models"
)

const (
	// MaxEntries is the hard cap on tracked sessions; writes beyond it are
	// rejected so a runaway client cannot exhaust memory.
	MaxEntries = 5000

	defaultTTL           = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// ErrCacheFull is returned when the entry cap is reached. The HTTP surface
// maps it to 503.
var ErrCacheFull = errors.New("runtime status cache full")

type entry struct {
	status    models.RuntimeStatus
	updatedAt time.Time
}

// Cache is a bounded in-memory session_id → runtime status map with TTL
// eviction. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	sweep   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Cache with the default TTL and sweep interval.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     defaultTTL,
		sweep:   defaultSweepInterval,
	}
}

// Set records the runtime status for a session. Returns ErrCacheFull when
// the cap is reached and the session is not already tracked.
func (c *Cache) Set(sessionID string, status models.RuntimeStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sessionID]; !exists && len(c.entries) >= MaxEntries {
		return ErrCacheFull
	}
	c.entries[sessionID] = entry{status: status, updatedAt: time.Now()}
	return nil
}

// Get returns the runtime status for a session, defaulting to idle when the
// session is unknown or expired.
func (c *Cache) Get(sessionID string) models.RuntimeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[sessionID]
	if !ok || time.Since(e.updatedAt) > c.ttl {
		return models.RuntimeIdle
	}
	return e.status
}

// Delete removes a session's entry (on confirm/kill).
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Len returns the number of tracked entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start launches the background eviction sweep. It is a no-op when already
// started.
func (c *Cache) Start(ctx context.Context) {
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go c.run(ctx)

	slog.Info("Runtime status cache started", "ttl", c.ttl, "sweep_interval", c.sweep)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (c *Cache) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	slog.Info("Runtime status cache stopped")
}

func (c *Cache) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, e := range c.entries {
		if e.updatedAt.Before(cutoff) {
			delete(c.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("Runtime status cache sweep", "evicted", evicted, "remaining", len(c.entries))
	}
}
