package adapter

import (
	"context"

	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/service/order/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentGateway，把卡支付请求 POST 给外部网关。
// 网关处理完成后通过回调接口或回调主题通知结果。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
	url    string
}

func NewPaymentHTTPAdapter(client *httpclient.Client, url string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, url: url}
}

func (a *PaymentHTTPAdapter) Submit(ctx context.Context, req port.PaymentRequest) error {
	return a.client.PostJSON(ctx, a.url, req)
}
