package domain

import "context"

// OrderRepository 定义了订单的持久化接口
type OrderRepository interface {
	// Create 保存新订单及其订单行，并回填 ID
	Create(ctx context.Context, o *Order) error
	// Update 保存状态和优惠信息，订单行不会被修改
	Update(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	// FindByIDForUpdate 锁定订单行，用于串行化同一订单上的支付处理和回调
	FindByIDForUpdate(ctx context.Context, id int64) (*Order, error)
	// ListByUser 按下单时间倒序返回
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}
