package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/coupon/domain"
)

// CouponModel 对应数据库中的 coupon 表
type CouponModel struct {
	ID                int64               `gorm:"primaryKey;autoIncrement"`
	UserID            string              `gorm:"size:64;index;not null"`
	Name              string              `gorm:"size:100;not null"`
	DiscountType      domain.DiscountType `gorm:"size:20;not null"`
	DiscountAmount    money.Money         `gorm:"type:decimal(19,2)"`
	DiscountRate      decimal.Decimal     `gorm:"type:decimal(5,2)"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(19,2)"`
	MinOrderAmount    money.Money         `gorm:"type:decimal(19,2);not null"`
	Status            domain.Status       `gorm:"size:20;not null"`
	ExpiredAt         time.Time           `gorm:"not null"`
	UsedAt            sql.NullTime
	Version           int64 `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupon"
}
