package port

import (
	"context"

	"fulfillment/internal/pkg/money"
	inventorydomain "fulfillment/internal/service/inventory/domain"
)

// UserDirectory 是用户存在性检查的出站端口，用户数据由外部系统维护。
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ProductCatalog 是商品目录的只读端口，单价以目录为准。
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*inventorydomain.Product, error)
}

// StockLedger 扣减库存，在外层事务中调用时行锁持有到事务结束。
type StockLedger interface {
	DecreaseStock(ctx context.Context, productID int64, qty money.Quantity) (money.Quantity, error)
}

// PointLedger 是积分台账端口。
type PointLedger interface {
	Use(ctx context.Context, userID string, amount int64) (int64, error)
	Charge(ctx context.Context, userID string, amount int64) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
}
