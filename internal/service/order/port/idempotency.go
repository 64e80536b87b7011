package port

import "context"

// IdempotencyStore 记录下单幂等键到订单号的映射。
//
// Reserve 返回 reserved=true 表示调用方拿到了该键，需要在完成后调用 Complete 或 Release；
// 否则 orderID > 0 表示该键已经生成过订单，orderID == 0 表示另一个请求正在处理。
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (orderID int64, reserved bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}
