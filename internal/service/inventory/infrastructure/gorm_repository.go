package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"fulfillment/internal/service/inventory/domain"
	"fulfillment/internal/store/gormstore"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	m := FromDomainProduct(p)
	if err := gormstore.Conn(ctx, r.db).Create(m).Error; err != nil {
		return gormstore.Translate(err, "create product")
	}
	p.ID = m.ID
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.find(gormstore.Conn(ctx, r.db), id)
}

// FindByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定商品行
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.find(gormstore.ForUpdate(gormstore.Conn(ctx, r.db)), id)
}

func (r *GormProductRepository) find(db *gorm.DB, id int64) (*domain.Product, error) {
	var m ProductModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if gormstore.IsNotFound(err) {
			return nil, domain.ErrProductNotFound.Of("product %d not found", id)
		}
		return nil, gormstore.Translate(err, "find product")
	}
	return ToDomainProduct(&m)
}

func (r *GormProductRepository) UpdateStock(ctx context.Context, p *domain.Product) error {
	err := gormstore.Conn(ctx, r.db).Model(&ProductModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"stock_quantity": p.Stock.Int64(),
			"updated_at":     p.UpdatedAt,
		}).Error
	return gormstore.Translate(err, "update stock")
}
