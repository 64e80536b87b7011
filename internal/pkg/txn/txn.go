// Package txn 定义了跨仓储的事务边界。
//
// 事务对象放在 context 里向下传递，仓储通过 From 取出当前事务；
// 嵌套的 WithinTx 会加入外层事务，而不是开启新的事务。
package txn

import "context"

// Manager 在一个原子事务中执行 fn：fn 返回错误或 panic 时全部回滚。
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

type detached struct{}

// With 把事务句柄放进 context。
func With(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From 返回 context 中的事务句柄，没有时返回 nil。
func From(ctx context.Context) any {
	v := ctx.Value(ctxKey{})
	if _, ok := v.(detached); ok {
		return nil
	}
	return v
}

// Detach 让后续的 WithinTx 开启独立事务，不受外层事务回滚影响。
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, detached{})
}
