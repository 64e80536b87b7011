package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/inventory/domain"
	"fulfillment/internal/service/inventory/infrastructure"
	"fulfillment/internal/store/memstore"
)

func newLedger(t *testing.T, lockTimeout time.Duration, stock int64) (*Ledger, *infrastructure.MemoryProductRepository, *memstore.Store) {
	t.Helper()
	store := memstore.New(lockTimeout)
	repo := infrastructure.NewMemoryProductRepository(store)
	require.NoError(t, repo.Create(context.Background(), &domain.Product{
		ID:    1,
		Name:  "keyboard",
		Price: money.MustFromInt(10000),
		Stock: money.MustQuantity(stock),
	}))
	return NewLedger(repo, store, noop.NewTracerProvider().Tracer("test"), metrics.New(prometheus.NewRegistry())), repo, store
}

func TestDecreaseStockReducesByExactQuantity(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newLedger(t, 0, 10)

	left, err := ledger.DecreaseStock(ctx, 1, money.MustQuantity(4))
	require.NoError(t, err)
	assert.Equal(t, int64(6), left.Int64())

	p, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.Stock.Int64())
}

func TestDecreaseStockInsufficientIsAtomic(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newLedger(t, 0, 3)

	_, err := ledger.DecreaseStock(ctx, 1, money.MustQuantity(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientResource)

	p, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, int64(3), p.Stock.Int64())
}

func TestDecreaseStockZeroIsNoop(t *testing.T) {
	ledger, repo, _ := newLedger(t, 0, 3)

	_, err := ledger.DecreaseStock(context.Background(), 1, money.MustQuantity(0))
	require.NoError(t, err)

	p, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, int64(3), p.Stock.Int64())
}

func TestDecreaseStockUnknownProduct(t *testing.T) {
	ledger, _, _ := newLedger(t, 0, 3)

	_, err := ledger.DecreaseStock(context.Background(), 99, money.MustQuantity(1))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = ledger.DecreaseStock(context.Background(), 0, money.MustQuantity(1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConcurrentDecreaseStock(t *testing.T) {
	const (
		stock    = 25
		perCall  = 3
		requests = 20
	)
	ledger, repo, _ := newLedger(t, 0, stock)

	var succeeded, insufficient atomic.Int64
	var wg sync.WaitGroup
	startGate := make(chan struct{})
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startGate
			_, err := ledger.DecreaseStock(context.Background(), 1, money.MustQuantity(perCall))
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.KindOf(err) == apperr.KindInsufficientResource:
				insufficient.Add(1)
			}
		}()
	}
	close(startGate)
	wg.Wait()

	assert.Equal(t, int64(stock/perCall), succeeded.Load())
	assert.Equal(t, int64(requests-stock/perCall), insufficient.Load())

	p, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, int64(stock-(stock/perCall)*perCall), p.Stock.Int64())
}

func TestDecreaseStockLockTimeout(t *testing.T) {
	ledger, repo, store := newLedger(t, 50*time.Millisecond, 5)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.WithinTx(context.Background(), func(ctx context.Context) error {
			_, err := repo.FindByIDForUpdate(ctx, 1)
			close(locked)
			<-release
			return err
		})
	}()

	<-locked
	_, err := ledger.DecreaseStock(context.Background(), 1, money.MustQuantity(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrLockTimeout)
	close(release)
	<-done

	p, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, int64(5), p.Stock.Int64())
}
