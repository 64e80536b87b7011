package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fulfillment/internal/pkg/apperr"
)

var (
	// ErrRowNotFound 表示主键不存在（或对当前事务不可见）。
	ErrRowNotFound = errors.New("memstore: row not found")
	// ErrDuplicateKey 表示插入的主键已存在。
	ErrDuplicateKey = errors.New("memstore: duplicate key")
)

type row[V any] struct {
	lock  chan struct{}
	owner *Tx

	committed *V
	pending   *V
	dirty     bool
}

// Table 是按主键寻址的一组行。
type Table[K comparable, V any] struct {
	store *Store
	name  string
	clone func(V) V

	mu   sync.Mutex
	rows map[K]*row[V]
	seq  atomic.Int64
}

// NewTable 创建一张表；clone 用于隔离调用方持有的值和表内的值。
func NewTable[K comparable, V any](s *Store, name string, clone func(V) V) *Table[K, V] {
	return &Table[K, V]{
		store: s,
		name:  name,
		clone: clone,
		rows:  make(map[K]*row[V]),
	}
}

// NextID 返回自增主键。
func (t *Table[K, V]) NextID() int64 { return t.seq.Add(1) }

// visible 返回当前事务能看到的值，调用方需持有 t.mu。
func (t *Table[K, V]) visible(r *row[V], tx *Tx) (*V, bool) {
	if tx != nil && r.owner == tx && r.dirty {
		return r.pending, r.pending != nil
	}
	return r.committed, r.committed != nil
}

// Get 是非锁定读。
func (t *Table[K, V]) Get(ctx context.Context, key K) (V, bool) {
	t.store.commitMu.RLock()
	defer t.store.commitMu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	r, ok := t.rows[key]
	if !ok {
		return zero, false
	}
	v, ok := t.visible(r, currentTx(ctx))
	if !ok {
		return zero, false
	}
	return t.clone(*v), true
}

// Scan 返回所有满足条件的可见行，顺序不保证。
func (t *Table[K, V]) Scan(ctx context.Context, match func(V) bool) []V {
	t.store.commitMu.RLock()
	defer t.store.commitMu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	tx := currentTx(ctx)
	var out []V
	for _, r := range t.rows {
		v, ok := t.visible(r, tx)
		if !ok || !match(*v) {
			continue
		}
		out = append(out, t.clone(*v))
	}
	return out
}

// GetForUpdate 获取行锁后读取，锁一直持有到事务结束。
// 在事务之外调用时退化为普通读。
func (t *Table[K, V]) GetForUpdate(ctx context.Context, key K) (V, error) {
	var zero V
	tx := currentTx(ctx)
	if tx == nil {
		v, ok := t.Get(ctx, key)
		if !ok {
			return zero, ErrRowNotFound
		}
		return v, nil
	}

	r, err := t.acquire(ctx, tx, key)
	if err != nil {
		return zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visible(r, tx)
	if !ok {
		return zero, ErrRowNotFound
	}
	return t.clone(*v), nil
}

// Insert 写入一行新数据，事务提交前其他事务不可见。
func (t *Table[K, V]) Insert(ctx context.Context, key K, value V) error {
	return t.store.WithinTx(ctx, func(ctx context.Context) error {
		tx := currentTx(ctx)

		t.mu.Lock()
		if _, exists := t.rows[key]; exists {
			t.mu.Unlock()
			return ErrDuplicateKey
		}
		v := t.clone(value)
		r := &row[V]{lock: make(chan struct{}, 1), owner: tx, pending: &v, dirty: true}
		r.lock <- struct{}{}
		t.rows[key] = r
		t.mu.Unlock()

		tx.track(r, &handle[K, V]{t: t, key: key, r: r})
		return nil
	})
}

// Update 在行锁保护下执行 read-modify-write，fn 看到的是持锁后的最新值。
func (t *Table[K, V]) Update(ctx context.Context, key K, fn func(current V) (V, error)) error {
	return t.store.WithinTx(ctx, func(ctx context.Context) error {
		tx := currentTx(ctx)
		r, err := t.acquire(ctx, tx, key)
		if err != nil {
			return err
		}

		t.mu.Lock()
		cur, ok := t.visible(r, tx)
		if !ok {
			t.mu.Unlock()
			return ErrRowNotFound
		}
		snapshot := t.clone(*cur)
		t.mu.Unlock()

		next, err := fn(snapshot)
		if err != nil {
			return err
		}

		v := t.clone(next)
		t.mu.Lock()
		r.pending = &v
		r.dirty = true
		t.mu.Unlock()
		return nil
	})
}

// Put 覆盖一行已存在的数据。
func (t *Table[K, V]) Put(ctx context.Context, key K, value V) error {
	return t.Update(ctx, key, func(V) (V, error) { return value, nil })
}

func (t *Table[K, V]) acquire(ctx context.Context, tx *Tx, key K) (*row[V], error) {
	for {
		t.mu.Lock()
		r, ok := t.rows[key]
		if !ok {
			t.mu.Unlock()
			return nil, ErrRowNotFound
		}
		if r.owner == tx {
			t.mu.Unlock()
			return r, nil
		}
		t.mu.Unlock()

		if err := t.lockRow(ctx, r, key); err != nil {
			return nil, err
		}

		t.mu.Lock()
		if t.rows[key] != r {
			// 等待期间插入该行的事务回滚了
			t.mu.Unlock()
			<-r.lock
			continue
		}
		r.owner = tx
		t.mu.Unlock()

		tx.track(r, &handle[K, V]{t: t, key: key, r: r})
		return r, nil
	}
}

func (t *Table[K, V]) lockRow(ctx context.Context, r *row[V], key K) error {
	timer := time.NewTimer(t.store.lockTimeout)
	defer timer.Stop()
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return errLockTimeout.Of("lock wait timeout on %s[%v] after %s", t.name, key, t.store.lockTimeout)
	case <-ctx.Done():
		return apperr.Wrap(apperr.KindLockTimeout, lockWaitCanceled, ctx.Err(),
			fmt.Sprintf("lock wait on %s[%v] abandoned", t.name, key))
	}
}

type handle[K comparable, V any] struct {
	t   *Table[K, V]
	key K
	r   *row[V]
}

func (h *handle[K, V]) commit() {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if h.r.dirty {
		h.r.committed = h.r.pending
	}
	h.r.pending = nil
	h.r.dirty = false
}

func (h *handle[K, V]) rollback() {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.r.pending = nil
	h.r.dirty = false
	if h.r.committed == nil && h.t.rows[h.key] == h.r {
		delete(h.t.rows, h.key)
	}
}

func (h *handle[K, V]) unlock() {
	h.t.mu.Lock()
	h.r.owner = nil
	h.t.mu.Unlock()
	<-h.r.lock
}
