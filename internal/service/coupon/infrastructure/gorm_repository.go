package infrastructure

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"fulfillment/internal/service/coupon/domain"
	"fulfillment/internal/store/gormstore"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository 创建一个新的 GORM 仓储实例
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

func (r *GormCouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	m := FromDomainCoupon(c)
	if err := gormstore.Conn(ctx, r.db).Create(m).Error; err != nil {
		return gormstore.Translate(err, "create coupon")
	}
	c.ID = m.ID
	return nil
}

// FindByIDAndUser 按券 ID 和持有人查询，别人的券视为不存在
func (r *GormCouponRepository) FindByIDAndUser(ctx context.Context, id int64, userID string) (*domain.Coupon, error) {
	var m CouponModel
	err := gormstore.Conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if err != nil {
		if gormstore.IsNotFound(err) {
			return nil, domain.ErrCouponNotFound.Of("coupon %d not found for user %s", id, userID)
		}
		return nil, gormstore.Translate(err, "find coupon")
	}
	return ToDomainCoupon(&m)
}

// UpdateIfVersion 使用 version 条件更新实现乐观锁
func (r *GormCouponRepository) UpdateIfVersion(ctx context.Context, c *domain.Coupon) error {
	usedAt := sql.NullTime{}
	if c.UsedAt != nil {
		usedAt = sql.NullTime{Time: *c.UsedAt, Valid: true}
	}
	res := gormstore.Conn(ctx, r.db).Model(&CouponModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"status":  c.Status,
			"used_at": usedAt,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return gormstore.Translate(res.Error, "update coupon")
	}
	if res.RowsAffected == 0 {
		return domain.ErrCouponConflict.Of("coupon %d was modified concurrently (version %d)", c.ID, c.Version)
	}
	c.Version++
	return nil
}
