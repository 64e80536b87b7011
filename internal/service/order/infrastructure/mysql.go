package infrastructure

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/store/gormstore"
)

// MysqlRepository 是 OrderRepository 的 GORM/MySQL 实现
type MysqlRepository struct {
	db *gorm.DB
}

func NewMysqlRepository(db *gorm.DB) *MysqlRepository {
	return &MysqlRepository{db: db}
}

// Create 连同订单行一起插入
func (r *MysqlRepository) Create(ctx context.Context, order *domain.Order) error {
	m := FromDomainOrder(order)
	if err := gormstore.Conn(ctx, r.db).Create(m).Error; err != nil {
		return gormstore.Translate(err, "create order")
	}
	order.ID = m.ID
	return nil
}

func (r *MysqlRepository) Update(ctx context.Context, order *domain.Order) error {
	coupon := sql.NullInt64{}
	if order.CouponID != nil {
		coupon = sql.NullInt64{Int64: *order.CouponID, Valid: true}
	}
	res := gormstore.Conn(ctx, r.db).Model(&OrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":          order.Status,
			"discount_amount": order.DiscountAmount,
			"coupon_id":       coupon,
			"updated_at":      order.UpdatedAt,
		})
	if res.Error != nil {
		return gormstore.Translate(res.Error, "update order")
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound.Of("order %d not found", order.ID)
	}
	return nil
}

func (r *MysqlRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.find(gormstore.Conn(ctx, r.db), id)
}

func (r *MysqlRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.find(gormstore.ForUpdate(gormstore.Conn(ctx, r.db)), id)
}

func (r *MysqlRepository) find(db *gorm.DB, id int64) (*domain.Order, error) {
	var m OrderModel
	if err := db.Preload("Items").Where("id = ?", id).First(&m).Error; err != nil {
		if gormstore.IsNotFound(err) {
			return nil, domain.ErrOrderNotFound.Of("order %d not found", id)
		}
		return nil, gormstore.Translate(err, "find order")
	}
	return ToDomainOrder(&m)
}

// ListByUser 按下单时间倒序返回用户的全部订单
func (r *MysqlRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := gormstore.Conn(ctx, r.db).Preload("Items").
		Where("user_id = ?", userID).
		Order("ordered_at DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, gormstore.Translate(err, "list orders")
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		o, err := ToDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
