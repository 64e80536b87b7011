package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"fulfillment/internal/service/payment/domain"
	"fulfillment/internal/store/gormstore"
)

// GormPaymentRepository 是 PaymentRepository 的 GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	m := FromDomainPayment(p)
	if err := gormstore.Conn(ctx, r.db).Create(m).Error; err != nil {
		return gormstore.Translate(err, "create payment")
	}
	p.ID = m.ID
	return nil
}

func (r *GormPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	res := gormstore.Conn(ctx, r.db).Model(&PaymentModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"status":          p.Status,
			"transaction_key": nullString(p.TransactionKey),
			"failure_reason":  nullString(p.FailureReason),
			"updated_at":      p.UpdatedAt,
		})
	if res.Error != nil {
		return gormstore.Translate(res.Error, "update payment")
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentNotFound.Of("payment %d not found", p.ID)
	}
	return nil
}

func (r *GormPaymentRepository) FindByTransactionKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findOne(gormstore.Conn(ctx, r.db).Where("transaction_key = ?", key), "payment with transaction key %s not found", key)
}

func (r *GormPaymentRepository) FindByTransactionKeyForUpdate(ctx context.Context, key string) (*domain.Payment, error) {
	q := gormstore.ForUpdate(gormstore.Conn(ctx, r.db)).Where("transaction_key = ?", key)
	return r.findOne(q, "payment with transaction key %s not found", key)
}

func (r *GormPaymentRepository) findOne(q *gorm.DB, notFound string, arg any) (*domain.Payment, error) {
	var m PaymentModel
	if err := q.First(&m).Error; err != nil {
		if gormstore.IsNotFound(err) {
			return nil, domain.ErrPaymentNotFound.Of(notFound, arg)
		}
		return nil, gormstore.Translate(err, "find payment")
	}
	return ToDomainPayment(&m), nil
}

func (r *GormPaymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Payment, error) {
	var models []PaymentModel
	err := gormstore.Conn(ctx, r.db).Where("order_id = ?", orderID).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, gormstore.Translate(err, "list payments")
	}
	out := make([]*domain.Payment, 0, len(models))
	for i := range models {
		out = append(out, ToDomainPayment(&models[i]))
	}
	return out, nil
}
