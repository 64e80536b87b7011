package port

import (
	"context"

	"fulfillment/internal/pkg/money"
)

// PaymentRequest 是提交给支付网关的卡支付请求。
type PaymentRequest struct {
	TransactionKey string      `json:"transactionKey"`
	OrderID        int64       `json:"orderId"`
	UserID         string      `json:"userId"`
	Amount         money.Money `json:"amount"`
	CardType       string      `json:"cardType"`
	CardNo         string      `json:"cardNo"`
}

// Outcome 是支付网关回调的结果
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// PaymentCallback 是网关异步回调的载荷。
type PaymentCallback struct {
	TransactionKey string  `json:"transactionKey"`
	Outcome        Outcome `json:"outcome"`
	Reason         string  `json:"reason,omitempty"`
}

// PaymentGateway 受理卡支付请求，结果通过 PaymentCallback 异步返回。
type PaymentGateway interface {
	Submit(ctx context.Context, req PaymentRequest) error
}

// CallbackHandler 处理网关回调，由应用服务实现。
type CallbackHandler interface {
	HandlePaymentCallback(ctx context.Context, cb PaymentCallback) error
}
