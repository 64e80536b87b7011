package infrastructure

import (
	"context"
	"errors"

	"fulfillment/internal/service/inventory/domain"
	"fulfillment/internal/store/memstore"
)

// MemoryProductRepository 是基于 memstore 的实现，行锁语义与 SELECT ... FOR UPDATE 一致。
type MemoryProductRepository struct {
	products *memstore.Table[int64, domain.Product]
}

func NewMemoryProductRepository(store *memstore.Store) *MemoryProductRepository {
	return &MemoryProductRepository{
		products: memstore.NewTable[int64, domain.Product](store, "product", func(p domain.Product) domain.Product { return p }),
	}
}

func (r *MemoryProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == 0 {
		p.ID = r.products.NextID()
	}
	return r.products.Insert(ctx, p.ID, *p)
}

func (r *MemoryProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, ok := r.products.Get(ctx, id)
	if !ok {
		return nil, domain.ErrProductNotFound.Of("product %d not found", id)
	}
	return &p, nil
}

func (r *MemoryProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := r.products.GetForUpdate(ctx, id)
	if err != nil {
		return nil, r.translate(err, id)
	}
	return &p, nil
}

func (r *MemoryProductRepository) UpdateStock(ctx context.Context, p *domain.Product) error {
	err := r.products.Update(ctx, p.ID, func(cur domain.Product) (domain.Product, error) {
		cur.Stock = p.Stock
		cur.UpdatedAt = p.UpdatedAt
		return cur, nil
	})
	return r.translate(err, p.ID)
}

func (r *MemoryProductRepository) translate(err error, id int64) error {
	if errors.Is(err, memstore.ErrRowNotFound) {
		return domain.ErrProductNotFound.Of("product %d not found", id)
	}
	return err
}
