package adapter

import (
	"context"
	"sync"
	"time"
)

type idempotencyEntry struct {
	orderID   int64
	expiresAt time.Time
}

// IdempotencyMemoryAdapter 是单机部署用的幂等键存储，语义与 Redis 实现一致。
type IdempotencyMemoryAdapter struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]idempotencyEntry
	lastSweep time.Time
}

func NewIdempotencyMemoryAdapter(ttl time.Duration) *IdempotencyMemoryAdapter {
	return &IdempotencyMemoryAdapter{ttl: ttl, now: time.Now, entries: make(map[string]idempotencyEntry)}
}

func (a *IdempotencyMemoryAdapter) Reserve(_ context.Context, key string) (int64, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.sweep(now)
	if e, ok := a.entries[key]; ok && now.Before(e.expiresAt) {
		return e.orderID, false, nil
	}
	a.entries[key] = idempotencyEntry{expiresAt: now.Add(a.ttl)}
	return 0, true, nil
}

// sweep 删除过期的键，每个 ttl 周期最多扫描一次。调用方持有 mu。
func (a *IdempotencyMemoryAdapter) sweep(now time.Time) {
	if now.Sub(a.lastSweep) < a.ttl {
		return
	}
	for k, e := range a.entries {
		if !now.Before(e.expiresAt) {
			delete(a.entries, k)
		}
	}
	a.lastSweep = now
}

func (a *IdempotencyMemoryAdapter) Complete(_ context.Context, key string, orderID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[key] = idempotencyEntry{orderID: orderID, expiresAt: a.now().Add(a.ttl)}
	return nil
}

func (a *IdempotencyMemoryAdapter) Release(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
	return nil
}
