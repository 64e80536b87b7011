package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/point/domain"
	"fulfillment/internal/store/gormstore"
)

// GormPointRepository 是 PointRepository 的 GORM 实现
type GormPointRepository struct {
	db *gorm.DB
}

func NewGormPointRepository(db *gorm.DB) *GormPointRepository {
	return &GormPointRepository{db: db}
}

func (r *GormPointRepository) Create(ctx context.Context, p *domain.Point) error {
	m := &PointModel{UserID: p.UserID, Amount: p.Balance.Int64(), UpdatedAt: p.UpdatedAt}
	return gormstore.Translate(gormstore.Conn(ctx, r.db).Create(m).Error, "create point")
}

func (r *GormPointRepository) FindByUserID(ctx context.Context, userID string) (*domain.Point, error) {
	return r.find(gormstore.Conn(ctx, r.db), userID)
}

// FindByUserIDForUpdate 使用 SELECT ... FOR UPDATE 锁定余额行
func (r *GormPointRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*domain.Point, error) {
	return r.find(gormstore.ForUpdate(gormstore.Conn(ctx, r.db)), userID)
}

func (r *GormPointRepository) find(db *gorm.DB, userID string) (*domain.Point, error) {
	var m PointModel
	if err := db.Where("user_id = ?", userID).First(&m).Error; err != nil {
		if gormstore.IsNotFound(err) {
			return nil, domain.ErrPointNotFound.Of("no point balance for user %s", userID)
		}
		return nil, gormstore.Translate(err, "find point")
	}
	balance, err := money.NewQuantity(m.Amount)
	if err != nil {
		return nil, err
	}
	return &domain.Point{UserID: m.UserID, Balance: balance, UpdatedAt: m.UpdatedAt}, nil
}

func (r *GormPointRepository) Save(ctx context.Context, p *domain.Point) error {
	err := gormstore.Conn(ctx, r.db).Model(&PointModel{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]interface{}{
			"amount":     p.Balance.Int64(),
			"updated_at": p.UpdatedAt,
		}).Error
	return gormstore.Translate(err, "save point")
}
