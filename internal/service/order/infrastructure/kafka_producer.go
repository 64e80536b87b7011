package infrastructure

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/port"
)

// PaymentCallbackProducerAdapter 把网关结果写入回调主题，由 PaymentCallbackConsumerAdapter 消费。
// 它实现了 port.CallbackHandler，可以直接挂在支付模拟器上。
type PaymentCallbackProducerAdapter struct {
	writer mq.Writer
}

func NewPaymentCallbackProducerAdapter(writer mq.Writer) *PaymentCallbackProducerAdapter {
	return &PaymentCallbackProducerAdapter{writer: writer}
}

func (p *PaymentCallbackProducerAdapter) HandlePaymentCallback(ctx context.Context, cb port.PaymentCallback) error {
	eventBytes, err := json.Marshal(cb)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal payment callback")
	}

	if err := mq.ProduceMessage(ctx, p.writer, []byte(cb.TransactionKey), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("transaction_key", cb.TransactionKey).Msg("failed to publish payment callback")
		return pkgerrors.Wrap(err, "publish payment callback")
	}
	return nil
}
