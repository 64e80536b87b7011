package application

import (
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/port"
	paymentdomain "fulfillment/internal/service/payment/domain"
)

// PaymentMode 决定下单后如何付款
type PaymentMode string

const (
	// PaymentModePoint 下单时直接用积分付清，订单在同一事务内完成
	PaymentModePoint PaymentMode = "POINT"
	// PaymentModeDeferred 只锁定库存和优惠券，订单停在 PAYMENT_PENDING 等待 ProcessPayment
	PaymentModeDeferred PaymentMode = "DEFERRED"
)

// OrderLine 是下单请求中的一行
type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	UserID         string      `json:"-"`
	Items          []OrderLine `json:"items"`
	CouponID       *int64      `json:"couponId,omitempty"`
	PaymentMode    PaymentMode `json:"paymentMode,omitempty"`
	IdempotencyKey string      `json:"-"`
}

type OrderItemDetail struct {
	ProductID int64       `json:"productId"`
	UnitPrice money.Money `json:"unitPrice"`
	Quantity  int64       `json:"quantity"`
	Subtotal  money.Money `json:"subtotal"`
}

// OrderDetail 是订单详情
type OrderDetail struct {
	ID             int64             `json:"id"`
	UserID         string            `json:"userId"`
	Items          []OrderItemDetail `json:"items"`
	TotalPrice     money.Money       `json:"totalPrice"`
	DiscountAmount money.Money       `json:"discountAmount"`
	FinalPrice     money.Money       `json:"finalPrice"`
	CouponID       *int64            `json:"couponId,omitempty"`
	Status         domain.State      `json:"status"`
	OrderedAt      time.Time         `json:"orderedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// OrderSummary 是订单列表中的一项
type OrderSummary struct {
	ID         int64        `json:"id"`
	FinalPrice money.Money  `json:"finalPrice"`
	ItemCount  int          `json:"itemCount"`
	Status     domain.State `json:"status"`
	OrderedAt  time.Time    `json:"orderedAt"`
}

// ProcessPaymentRequest 是支付用例的输入数据，卡支付时 CardType 和 CardNo 必填
type ProcessPaymentRequest struct {
	OrderID  int64                `json:"-"`
	UserID   string               `json:"-"`
	Method   paymentdomain.Method `json:"method"`
	Amount   money.Money          `json:"amount"`
	CardType string               `json:"cardType,omitempty"`
	CardNo   string               `json:"cardNo,omitempty"`
}

// PaymentResult 是支付用例的输出
type PaymentResult struct {
	TransactionKey string               `json:"transactionKey"`
	Status         paymentdomain.Status `json:"status"`
}

// PaymentDetail 是支付详情，卡号已脱敏
type PaymentDetail struct {
	ID             int64                `json:"id"`
	OrderID        int64                `json:"orderId"`
	Amount         money.Money          `json:"amount"`
	Method         paymentdomain.Method `json:"method"`
	CardType       string               `json:"cardType,omitempty"`
	CardNo         string               `json:"cardNo,omitempty"`
	Status         paymentdomain.Status `json:"status"`
	TransactionKey string               `json:"transactionKey,omitempty"`
	FailureReason  string               `json:"failureReason,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func toOrderDetail(o *domain.Order) *OrderDetail {
	items := make([]OrderItemDetail, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDetail{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity.Int64(),
			Subtotal:  it.Subtotal(),
		})
	}
	return &OrderDetail{
		ID:             o.ID,
		UserID:         o.UserID,
		Items:          items,
		TotalPrice:     o.TotalPrice,
		DiscountAmount: o.DiscountAmount,
		FinalPrice:     o.FinalPrice(),
		CouponID:       o.CouponID,
		Status:         o.Status,
		OrderedAt:      o.OrderedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderSummary(o *domain.Order) OrderSummary {
	return OrderSummary{
		ID:         o.ID,
		FinalPrice: o.FinalPrice(),
		ItemCount:  len(o.Items),
		Status:     o.Status,
		OrderedAt:  o.OrderedAt,
	}
}

func toPaymentDetail(p *paymentdomain.Payment) *PaymentDetail {
	return &PaymentDetail{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Method:         p.Method,
		CardType:       p.CardType,
		CardNo:         logger.MaskCardNo(p.CardNo),
		Status:         p.Status,
		TransactionKey: p.TransactionKey,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toSnapshot(o *domain.Order) port.OrderSnapshot {
	items := make([]port.SnapshotItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, port.SnapshotItem{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice.String(),
			Quantity:  it.Quantity.Int64(),
		})
	}
	return port.OrderSnapshot{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		TotalPrice:     o.TotalPrice.String(),
		DiscountAmount: o.DiscountAmount.String(),
		FinalPrice:     o.FinalPrice().String(),
		CouponID:       o.CouponID,
		Items:          items,
		OrderedAt:      o.OrderedAt,
	}
}
