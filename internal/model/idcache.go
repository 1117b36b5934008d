// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// DefaultIDCacheLimit bounds the rendered-id cache.
const DefaultIDCacheLimit = 500

// IDCache is the bounded set of server ids that have been rendered.
type IDCache struct {
	limit int
	ids   map[string]struct{}
}

// NewIDCache creates a cache holding at most limit ids.
func NewIDCache(limit int) *IDCache {
	if limit <= 0 {
		limit = DefaultIDCacheLimit
	}
	return &IDCache{limit: limit, ids: make(map[string]struct{}, limit)}
}

// Has reports whether id has been registered.
func (c *IDCache) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// Register records id. When the cache grows past its limit it keeps only
// the ids returned by recent, which must list the newest rendered ids in
// store order.
func (c *IDCache) Register(id string, recent func(n int) []string) {
	if id == "" {
		return
	}
	c.ids[id] = struct{}{}
	if len(c.ids) <= c.limit || recent == nil {
		return
	}
	keep := recent(c.limit)
	c.ids = make(map[string]struct{}, c.limit)
	for _, k := range keep {
		c.ids[k] = struct{}{}
	}
}

// Len returns the number of cached ids.
func (c *IDCache) Len() int {
	return len(c.ids)
}

// Reset empties the cache.
func (c *IDCache) Reset() {
	c.ids = make(map[string]struct{}, c.limit)
}
