package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DedupeStore remembers accepted delivery ids
type DedupeStore interface {
	// MarkSeen records id and reports whether it had already been recorded
	MarkSeen(ctx context.Context, id string) (duplicate bool, err error)
}

// MemoryDedupe keeps recently seen delivery ids in an in-process expiring LRU
type MemoryDedupe struct {
	mu    sync.Mutex
	cache *lru.LRU[string, struct{}]
}

// NewMemoryDedupe creates a store holding up to size ids for window each
func NewMemoryDedupe(size int, window time.Duration) *MemoryDedupe {
	return &MemoryDedupe{
		cache: lru.NewLRU[string, struct{}](size, nil, window),
	}
}

// MarkSeen implements DedupeStore
func (d *MemoryDedupe) MarkSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cache.Get(id); ok {
		return true, nil
	}
	d.cache.Add(id, struct{}{})
	return false, nil
}

// RedisDedupe shares seen delivery ids across receiver replicas
type RedisDedupe struct {
	client redis.Cmdable
	prefix string
	window time.Duration
}

// NewRedisDedupe creates a store keeping ids under prefix for window
func NewRedisDedupe(client redis.Cmdable, prefix string, window time.Duration) *RedisDedupe {
	if prefix == "" {
		prefix = "zeal:delivery:"
	}
	return &RedisDedupe{client: client, prefix: prefix, window: window}
}

// MarkSeen implements DedupeStore using SETNX with a TTL
func (d *RedisDedupe) MarkSeen(ctx context.Context, id string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.prefix+id, time.Now().Unix(), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record delivery %s: %w", id, err)
	}
	return !created, nil
}
