package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/pkg/tracing"
	"fulfillment/internal/pkg/txn"
	"fulfillment/internal/service/inventory/domain"
)

const ledgerName = "inventory"

// Ledger 是库存台账：对单个商品行加排他锁后做检查并扣减。
type Ledger struct {
	repo    domain.ProductRepository
	tx      txn.Manager
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedger(repo domain.ProductRepository, tx txn.Manager, tracer trace.Tracer, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, tx: tx, tracer: tracer, metrics: m, now: time.Now}
}

// DecreaseStock 扣减库存并返回剩余数量。数量为 0 时直接成功。
// 在外层事务中调用时，行锁持有到外层事务结束。
func (l *Ledger) DecreaseStock(ctx context.Context, productID int64, qty money.Quantity) (remaining money.Quantity, err error) {
	ctx, span := l.tracer.Start(ctx, "inventory.DecreaseStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", qty.Int64()))

	start := time.Now()
	defer func() {
		l.metrics.ObserveLedger(ledgerName, "decrease_stock", start, err)
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	if productID <= 0 {
		return money.Quantity{}, apperr.Newf(apperr.KindValidation, "INVALID_PRODUCT_ID", "product id must be positive: %d", productID)
	}
	if qty.IsZero() {
		return money.Quantity{}, nil
	}

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := l.repo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := product.DecreaseStock(qty, l.now()); err != nil {
			return err
		}
		if err := l.repo.UpdateStock(ctx, product); err != nil {
			return err
		}
		remaining = product.Stock
		return nil
	})
	if err != nil {
		return money.Quantity{}, err
	}

	logger.Ctx(ctx).Debug().Int64("product_id", productID).Int64("quantity", qty.Int64()).
		Int64("remaining", remaining.Int64()).Msg("stock decreased")
	return remaining, nil
}

// GetProduct 是商品目录读取，不加锁。
func (l *Ledger) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return l.repo.FindByID(ctx, productID)
}
