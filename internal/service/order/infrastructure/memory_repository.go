package infrastructure

import (
	"context"
	"errors"
	"sort"

	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/store/memstore"
)

// MemoryRepository 是基于 memstore 的订单仓储
type MemoryRepository struct {
	orders *memstore.Table[int64, domain.Order]
}

func NewMemoryRepository(store *memstore.Store) *MemoryRepository {
	return &MemoryRepository{
		orders: memstore.NewTable[int64, domain.Order](store, "orders", domain.Order.Clone),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, order *domain.Order) error {
	order.ID = r.orders.NextID()
	return r.orders.Insert(ctx, order.ID, *order)
}

func (r *MemoryRepository) Update(ctx context.Context, order *domain.Order) error {
	err := r.orders.Update(ctx, order.ID, func(cur domain.Order) (domain.Order, error) {
		cur.Status = order.Status
		cur.DiscountAmount = order.DiscountAmount
		cur.CouponID = order.Clone().CouponID
		cur.UpdatedAt = order.UpdatedAt
		return cur, nil
	})
	return r.translate(err, order.ID)
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, ok := r.orders.Get(ctx, id)
	if !ok {
		return nil, domain.ErrOrderNotFound.Of("order %d not found", id)
	}
	return &o, nil
}

func (r *MemoryRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := r.orders.GetForUpdate(ctx, id)
	if err != nil {
		return nil, r.translate(err, id)
	}
	return &o, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	found := r.orders.Scan(ctx, func(o domain.Order) bool { return o.UserID == userID })
	sort.Slice(found, func(i, j int) bool {
		if !found[i].OrderedAt.Equal(found[j].OrderedAt) {
			return found[i].OrderedAt.After(found[j].OrderedAt)
		}
		return found[i].ID > found[j].ID
	})

	orders := make([]*domain.Order, len(found))
	for i := range found {
		orders[i] = &found[i]
	}
	return orders, nil
}

func (r *MemoryRepository) translate(err error, id int64) error {
	if errors.Is(err, memstore.ErrRowNotFound) {
		return domain.ErrOrderNotFound.Of("order %d not found", id)
	}
	return err
}
