package infrastructure

import (
	"time"

	"fulfillment/internal/pkg/money"
)

// ProductModel 对应数据库中的 product 表，本服务只写 stock_quantity 一列。
type ProductModel struct {
	ID            int64       `gorm:"primaryKey;autoIncrement"`
	Name          string      `gorm:"size:200;not null"`
	Price         money.Money `gorm:"type:decimal(19,2);not null"`
	StockQuantity int64       `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "product"
}
