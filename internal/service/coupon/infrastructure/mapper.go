package infrastructure

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/coupon/domain"
)

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(m *CouponModel) (*domain.Coupon, error) {
	c := &domain.Coupon{
		ID:             m.ID,
		UserID:         m.UserID,
		Name:           m.Name,
		MinOrderAmount: m.MinOrderAmount,
		Status:         m.Status,
		ExpiredAt:      m.ExpiredAt,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
	}
	if m.UsedAt.Valid {
		t := m.UsedAt.Time
		c.UsedAt = &t
	}

	switch m.DiscountType {
	case domain.DiscountFixedRate:
		var limit *money.Money
		if m.MaxDiscountAmount.Valid {
			v, err := money.New(m.MaxDiscountAmount.Decimal)
			if err != nil {
				return nil, err
			}
			limit = &v
		}
		d, err := domain.FixedRate(m.DiscountRate, limit)
		if err != nil {
			return nil, err
		}
		c.Discount = d
	default:
		c.Discount = domain.FixedAmount(m.DiscountAmount)
	}
	return c, nil
}

// FromDomainCoupon 将领域模型转换为数据库模型 (用于插入)
func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	m := &CouponModel{
		ID:             c.ID,
		UserID:         c.UserID,
		Name:           c.Name,
		DiscountType:   c.Discount.Type,
		DiscountAmount: c.Discount.Amount,
		DiscountRate:   c.Discount.Rate,
		MinOrderAmount: c.MinOrderAmount,
		Status:         c.Status,
		ExpiredAt:      c.ExpiredAt,
		Version:        c.Version,
		CreatedAt:      c.CreatedAt,
	}
	if c.Discount.MaxAmount != nil {
		m.MaxDiscountAmount = decimal.NullDecimal{Decimal: c.Discount.MaxAmount.Decimal(), Valid: true}
	}
	if c.UsedAt != nil {
		m.UsedAt = sql.NullTime{Time: *c.UsedAt, Valid: true}
	}
	return m
}
