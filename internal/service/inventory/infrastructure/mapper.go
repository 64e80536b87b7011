package infrastructure

import (
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/inventory/domain"
)

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(m *ProductModel) (*domain.Product, error) {
	stock, err := money.NewQuantity(m.StockQuantity)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Stock:     stock,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// FromDomainProduct 将领域模型转换为数据库模型
func FromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		StockQuantity: p.Stock.Int64(),
		UpdatedAt:     p.UpdatedAt,
	}
}
