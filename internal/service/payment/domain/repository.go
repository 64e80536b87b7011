package domain

import "context"

// PaymentRepository 定义了支付记录的持久化接口
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
	FindByTransactionKey(ctx context.Context, key string) (*Payment, error)
	// FindByTransactionKeyForUpdate 锁定支付行，串行化重复到达的回调
	FindByTransactionKeyForUpdate(ctx context.Context, key string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*Payment, error)
}
