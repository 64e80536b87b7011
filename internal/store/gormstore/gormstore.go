// Package gormstore 提供基于 GORM/MySQL 的事务管理和错误翻译。
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/txn"
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlLockNoWait      = 3572
	mysqlDuplicateEntry  = 1062
)

var (
	errLockTimeout = apperr.New(apperr.KindLockTimeout, "LOCK_TIMEOUT")

	// ErrDuplicateKey 表示违反唯一约束。
	ErrDuplicateKey = errors.New("gormstore: duplicate key")
)

// TxManager 是 txn.Manager 的 GORM 实现。
type TxManager struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewTxManager 创建事务管理器，lockTimeout 会作为 innodb_lock_wait_timeout 下发到每个事务。
func NewTxManager(db *gorm.DB, lockTimeout time.Duration) *TxManager {
	return &TxManager{db: db, lockTimeout: lockTimeout}
}

// WithinTx 开启事务或加入 context 中已有的事务。
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txn.From(ctx).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.lockTimeout > 0 {
			// innodb_lock_wait_timeout 以秒为单位，最小 1 秒
			secs := int(math.Max(1, math.Ceil(m.lockTimeout.Seconds())))
			if err := tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)).Error; err != nil {
				return pkgerrors.Wrap(err, "set lock wait timeout")
			}
		}
		return fn(txn.With(ctx, tx))
	})
}

// Conn 返回当前事务连接，不在事务中时返回带 ctx 的普通连接。
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txn.From(ctx).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// ForUpdate 给查询加上 SELECT ... FOR UPDATE。
func ForUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Translate 把驱动层错误翻译成领域可识别的错误，其他错误原样包装返回。
func Translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout, mysqlLockNoWait:
			return errLockTimeout.Of("%s: lock wait timeout: %s", op, myErr.Message)
		case mysqlDuplicateEntry:
			return pkgerrors.Wrap(ErrDuplicateKey, op)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.Wrap(ErrDuplicateKey, op)
	}
	return pkgerrors.Wrap(err, op)
}

// IsNotFound 判断是否为记录不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
