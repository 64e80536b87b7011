package infrastructure

import (
	"context"
	"errors"

	"fulfillment/internal/service/point/domain"
	"fulfillment/internal/store/memstore"
)

// MemoryPointRepository 是基于 memstore 的实现。
type MemoryPointRepository struct {
	points *memstore.Table[string, domain.Point]
}

func NewMemoryPointRepository(store *memstore.Store) *MemoryPointRepository {
	return &MemoryPointRepository{
		points: memstore.NewTable[string, domain.Point](store, "point", func(p domain.Point) domain.Point { return p }),
	}
}

func (r *MemoryPointRepository) Create(ctx context.Context, p *domain.Point) error {
	return r.points.Insert(ctx, p.UserID, *p)
}

func (r *MemoryPointRepository) FindByUserID(ctx context.Context, userID string) (*domain.Point, error) {
	p, ok := r.points.Get(ctx, userID)
	if !ok {
		return nil, domain.ErrPointNotFound.Of("no point balance for user %s", userID)
	}
	return &p, nil
}

func (r *MemoryPointRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*domain.Point, error) {
	p, err := r.points.GetForUpdate(ctx, userID)
	if errors.Is(err, memstore.ErrRowNotFound) {
		return nil, domain.ErrPointNotFound.Of("no point balance for user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MemoryPointRepository) Save(ctx context.Context, p *domain.Point) error {
	err := r.points.Put(ctx, p.UserID, *p)
	if errors.Is(err, memstore.ErrRowNotFound) {
		return domain.ErrPointNotFound.Of("no point balance for user %s", p.UserID)
	}
	return err
}
