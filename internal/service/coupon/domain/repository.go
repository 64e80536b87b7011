package domain

import "context"

// CouponRepository 定义了优惠券数据的持久化接口
type CouponRepository interface {
	Create(ctx context.Context, c *Coupon) error
	FindByIDAndUser(ctx context.Context, id int64, userID string) (*Coupon, error)
	// UpdateIfVersion 仅当持久化的版本号仍等于 c.Version 时写入，成功后 c.Version 加一；
	// 否则返回 ErrCouponConflict。
	UpdateIfVersion(ctx context.Context, c *Coupon) error
}
