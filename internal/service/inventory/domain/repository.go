package domain

import "context"

// ProductRepository 定义库存的持久化接口。
// FindByIDForUpdate 必须在事务内调用，它会持有该商品行的排他锁直到事务结束。
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*Product, error)
	UpdateStock(ctx context.Context, p *Product) error
}
