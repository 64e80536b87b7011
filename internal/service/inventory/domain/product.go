package domain

import (
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

var (
	ErrProductNotFound   = apperr.New(apperr.KindNotFound, "PRODUCT_NOT_FOUND")
	ErrInsufficientStock = apperr.New(apperr.KindInsufficientResource, "INSUFFICIENT_STOCK")
)

// Product 是商品在本服务内可变的部分：库存。价格只读，来自商品目录。
type Product struct {
	ID        int64
	Name      string
	Price     money.Money
	Stock     money.Quantity
	UpdatedAt time.Time
}

// DecreaseStock 扣减库存，库存不足时不做任何修改。
func (p *Product) DecreaseStock(q money.Quantity, now time.Time) error {
	left, err := p.Stock.Sub(q)
	if err != nil {
		return ErrInsufficientStock.Of("insufficient stock for product %d: current=%d, requested=%d",
			p.ID, p.Stock.Int64(), q.Int64())
	}
	p.Stock = left
	p.UpdatedAt = now
	return nil
}
