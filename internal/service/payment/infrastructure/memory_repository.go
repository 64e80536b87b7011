package infrastructure

import (
	"context"
	"errors"
	"sort"

	"fulfillment/internal/service/payment/domain"
	"fulfillment/internal/store/memstore"
)

var errDuplicateTransactionKey = errors.New("duplicate transaction key")

// MemoryPaymentRepository 是基于 memstore 的支付仓储
type MemoryPaymentRepository struct {
	payments *memstore.Table[int64, domain.Payment]
}

func NewMemoryPaymentRepository(store *memstore.Store) *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		payments: memstore.NewTable[int64, domain.Payment](store, "payment", func(p domain.Payment) domain.Payment { return p }),
	}
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.checkKeyUnique(ctx, p); err != nil {
		return err
	}
	p.ID = r.payments.NextID()
	return r.payments.Insert(ctx, p.ID, *p)
}

func (r *MemoryPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	if err := r.checkKeyUnique(ctx, p); err != nil {
		return err
	}
	err := r.payments.Put(ctx, p.ID, *p)
	if errors.Is(err, memstore.ErrRowNotFound) {
		return domain.ErrPaymentNotFound.Of("payment %d not found", p.ID)
	}
	return err
}

func (r *MemoryPaymentRepository) checkKeyUnique(ctx context.Context, p *domain.Payment) error {
	if p.TransactionKey == "" {
		return nil
	}
	dup := r.payments.Scan(ctx, func(other domain.Payment) bool {
		return other.TransactionKey == p.TransactionKey && other.ID != p.ID
	})
	if len(dup) > 0 {
		return errDuplicateTransactionKey
	}
	return nil
}

func (r *MemoryPaymentRepository) FindByTransactionKey(ctx context.Context, key string) (*domain.Payment, error) {
	found := r.payments.Scan(ctx, func(p domain.Payment) bool { return p.TransactionKey == key })
	if len(found) == 0 {
		return nil, domain.ErrPaymentNotFound.Of("payment with transaction key %s not found", key)
	}
	return &found[0], nil
}

// FindByTransactionKeyForUpdate 先按交易号定位主键，再锁定该行重新读取
func (r *MemoryPaymentRepository) FindByTransactionKeyForUpdate(ctx context.Context, key string) (*domain.Payment, error) {
	p, err := r.FindByTransactionKey(ctx, key)
	if err != nil {
		return nil, err
	}
	locked, err := r.payments.GetForUpdate(ctx, p.ID)
	if errors.Is(err, memstore.ErrRowNotFound) {
		return nil, domain.ErrPaymentNotFound.Of("payment with transaction key %s not found", key)
	}
	if err != nil {
		return nil, err
	}
	return &locked, nil
}

func (r *MemoryPaymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Payment, error) {
	found := r.payments.Scan(ctx, func(p domain.Payment) bool { return p.OrderID == orderID })
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	out := make([]*domain.Payment, len(found))
	for i := range found {
		out[i] = &found[i]
	}
	return out, nil
}
