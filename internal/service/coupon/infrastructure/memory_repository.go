package infrastructure

import (
	"context"
	"errors"

	"fulfillment/internal/service/coupon/domain"
	"fulfillment/internal/store/memstore"
)

// MemoryCouponRepository 是基于 memstore 的实现。
// 条件写入先等待行锁，再与最新提交的版本比较，和 MySQL 的 UPDATE ... WHERE version = ? 行为一致。
type MemoryCouponRepository struct {
	coupons *memstore.Table[int64, domain.Coupon]
}

func NewMemoryCouponRepository(store *memstore.Store) *MemoryCouponRepository {
	return &MemoryCouponRepository{
		coupons: memstore.NewTable[int64, domain.Coupon](store, "coupon", domain.Coupon.Clone),
	}
}

func (r *MemoryCouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	if c.ID == 0 {
		c.ID = r.coupons.NextID()
	}
	return r.coupons.Insert(ctx, c.ID, *c)
}

func (r *MemoryCouponRepository) FindByIDAndUser(ctx context.Context, id int64, userID string) (*domain.Coupon, error) {
	c, ok := r.coupons.Get(ctx, id)
	if !ok || c.UserID != userID {
		return nil, domain.ErrCouponNotFound.Of("coupon %d not found for user %s", id, userID)
	}
	return &c, nil
}

func (r *MemoryCouponRepository) UpdateIfVersion(ctx context.Context, c *domain.Coupon) error {
	err := r.coupons.Update(ctx, c.ID, func(cur domain.Coupon) (domain.Coupon, error) {
		if cur.Version != c.Version {
			return cur, domain.ErrCouponConflict.Of("coupon %d was modified concurrently (version %d, now %d)", c.ID, c.Version, cur.Version)
		}
		next := c.Clone()
		next.Version = cur.Version + 1
		return next, nil
	})
	switch {
	case errors.Is(err, memstore.ErrRowNotFound):
		return domain.ErrCouponNotFound.Of("coupon %d not found", c.ID)
	case err != nil:
		return err
	}
	c.Version++
	return nil
}
