package infrastructure

import (
	"database/sql"
	"sort"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(m *OrderModel) (*domain.Order, error) {
	o := &domain.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		TotalPrice:     m.TotalPrice,
		DiscountAmount: m.DiscountAmount,
		Status:         m.Status,
		OrderedAt:      m.OrderedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.CouponID.Valid {
		id := m.CouponID.Int64
		o.CouponID = &id
	}

	items := append([]OrderItemModel(nil), m.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })
	for _, it := range items {
		q, err := money.NewQuantity(it.Quantity)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, domain.Item{ProductID: it.ProductID, UnitPrice: it.UnitPrice, Quantity: q})
	}
	return o, nil
}

// FromDomainOrder 将领域模型转换为数据库模型 (用于插入)
func FromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		TotalPrice:     o.TotalPrice,
		DiscountAmount: o.DiscountAmount,
		Status:         o.Status,
		OrderedAt:      o.OrderedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CouponID != nil {
		m.CouponID = sql.NullInt64{Int64: *o.CouponID, Valid: true}
	}
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			LineNo:    i + 1,
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity.Int64(),
		})
	}
	return m
}
