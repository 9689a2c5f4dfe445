package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process backend for single-instance deployments and
// tests.
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := mc.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data := v.([]byte)
	return append([]byte(nil), data...), true, nil
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	mc.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (mc *MemoryCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for key := range mc.items.Items() {
		if strings.HasPrefix(key, prefix) {
			mc.items.Delete(key)
			removed++
		}
	}
	return removed, nil
}

func (mc *MemoryCache) Ping(context.Context) error {
	return nil
}
