package infrastructure

import (
	"database/sql"
	"time"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID             int64         `gorm:"primaryKey;autoIncrement"`
	UserID         string        `gorm:"size:64;index:idx_orders_user_ordered,priority:1;not null"`
	TotalPrice     money.Money   `gorm:"type:decimal(19,2);not null"`
	DiscountAmount money.Money   `gorm:"type:decimal(19,2);not null"`
	CouponID       sql.NullInt64 `gorm:"index"`
	Status         domain.State  `gorm:"size:32;not null"`
	OrderedAt      time.Time     `gorm:"index:idx_orders_user_ordered,priority:2;not null"`
	UpdatedAt      time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_item 表
type OrderItemModel struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	OrderID   int64       `gorm:"index;not null"`
	LineNo    int         `gorm:"not null"`
	ProductID int64       `gorm:"not null"`
	UnitPrice money.Money `gorm:"type:decimal(19,2);not null"`
	Quantity  int64       `gorm:"not null"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_item"
}
