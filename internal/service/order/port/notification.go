package port

import (
	"context"
	"time"
)

// OrderSnapshot 是推送给外部导出方的订单快照，金额以十进制字符串表示。
type OrderSnapshot struct {
	OrderID        int64          `json:"orderId"`
	UserID         string         `json:"userId"`
	Status         string         `json:"status"`
	TotalPrice     string         `json:"totalPrice"`
	DiscountAmount string         `json:"discountAmount"`
	FinalPrice     string         `json:"finalPrice"`
	CouponID       *int64         `json:"couponId,omitempty"`
	Items          []SnapshotItem `json:"items"`
	OrderedAt      time.Time      `json:"orderedAt"`
}

type SnapshotItem struct {
	ProductID int64  `json:"productId"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
}

// OrderExporter 是订单导出的出站端口，尽力而为，失败不影响订单。
type OrderExporter interface {
	Notify(ctx context.Context, snapshot OrderSnapshot) error
}
