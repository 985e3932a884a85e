// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Collections caches JSON-rendered entity list responses keyed by
// resource type. Mutating handlers invalidate the affected resource; a
// cascade (customer delete, lead conversion) invalidates every resource
// it touches.
type Collections struct {
	cache Cache
	ttl   time.Duration
}

// NewCollections wraps a Cache for entity list caching.
func NewCollections(c Cache, ttl time.Duration) *Collections {
	return &Collections{cache: c, ttl: ttl}
}

func collectionKey(resource string) string {
	return "collection:" + resource
}

// Get returns the cached list payload for a resource, or false on miss.
// Cache errors are treated as misses; callers re-render from state.
func (c *Collections) Get(ctx context.Context, resource string) ([]byte, bool) {
	data, err := c.cache.Get(ctx, collectionKey(resource))
	if err != nil {
		if err != ErrCacheMiss {
			slog.Warn("collection cache read failed", "resource", resource, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores the rendered list payload for a resource.
func (c *Collections) Set(ctx context.Context, resource string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("collection cache encode failed", "resource", resource, "error", err)
		return
	}
	if err := c.cache.Set(ctx, collectionKey(resource), data, c.ttl); err != nil {
		slog.Warn("collection cache write failed", "resource", resource, "error", err)
	}
}

// Invalidate drops the cached lists for the given resources.
func (c *Collections) Invalidate(ctx context.Context, resources ...string) {
	for _, resource := range resources {
		if err := c.cache.Delete(ctx, collectionKey(resource)); err != nil {
			slog.Warn("collection cache invalidate failed", "resource", resource, "error", err)
		}
	}
}

// InvalidateAll drops every cached list, used after a full resync.
func (c *Collections) InvalidateAll(ctx context.Context) {
	if err := c.cache.Clear(ctx); err != nil {
		slog.Warn("collection cache clear failed", "error", err)
	}
}
