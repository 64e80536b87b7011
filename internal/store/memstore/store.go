// Package memstore 是进程内的事务型行存储，用于单机部署和测试。
//
// 每一行都有一把排他锁，写操作（以及 GetForUpdate）在事务内持有该锁直到提交或回滚；
// 非锁定读只看到已提交的数据和本事务自己的写入。提交时所有被修改的行一次性可见，
// 回滚时丢弃所有未提交的写入。
package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/txn"
)

// DefaultLockTimeout 是行锁的默认等待上限。
const DefaultLockTimeout = 3 * time.Second

// Store 持有锁超时配置，并负责事务的提交与回滚。
type Store struct {
	lockTimeout time.Duration

	// 提交时持写锁，读取时持读锁，保证一个事务的多行修改对读者原子可见
	commitMu sync.RWMutex
	txSeq    atomic.Uint64
}

// New 创建一个存储实例，lockTimeout <= 0 时使用 DefaultLockTimeout。
func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{lockTimeout: lockTimeout}
}

// Tx 是一个进行中的事务。
type Tx struct {
	id uint64

	mu      sync.Mutex
	touched []rowHandle
	seen    map[any]struct{}
}

type rowHandle interface {
	commit()
	rollback()
	unlock()
}

func (tx *Tx) track(key any, h rowHandle) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if _, ok := tx.seen[key]; ok {
		return
	}
	tx.seen[key] = struct{}{}
	tx.touched = append(tx.touched, h)
}

// WithinTx 实现 txn.Manager。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txn.From(ctx).(*Tx); ok {
		return fn(ctx)
	}

	tx := &Tx{id: s.txSeq.Add(1), seen: make(map[any]struct{})}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			panic(p)
		}
	}()

	if err = fn(txn.With(ctx, tx)); err != nil {
		s.rollback(tx)
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *Tx) {
	tx.mu.Lock()
	touched := tx.touched
	tx.touched = nil
	tx.mu.Unlock()

	s.commitMu.Lock()
	for _, h := range touched {
		h.commit()
	}
	s.commitMu.Unlock()

	for _, h := range touched {
		h.unlock()
	}
}

func (s *Store) rollback(tx *Tx) {
	tx.mu.Lock()
	touched := tx.touched
	tx.touched = nil
	tx.mu.Unlock()

	for i := len(touched) - 1; i >= 0; i-- {
		touched[i].rollback()
	}
	for _, h := range touched {
		h.unlock()
	}
}

func currentTx(ctx context.Context) *Tx {
	tx, _ := txn.From(ctx).(*Tx)
	return tx
}

var errLockTimeout = apperr.New(apperr.KindLockTimeout, "LOCK_TIMEOUT")

// 等锁期间调用方的 ctx 被取消或超时
const lockWaitCanceled = "LOCK_WAIT_CANCELED"
