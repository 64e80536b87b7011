package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/port"
)

const (
	callbackMaxAttempts = 3
	callbackRetryDelay  = 200 * time.Millisecond
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentCallbackConsumerAdapter 是一个驱动适配器，它监听回调主题并驱动应用服务。
type PaymentCallbackConsumerAdapter struct {
	reader  MessageReader
	handler port.CallbackHandler
	topic   string
	wg      sync.WaitGroup
}

func NewPaymentCallbackConsumerAdapter(reader MessageReader, handler port.CallbackHandler, topic string) *PaymentCallbackConsumerAdapter {
	return &PaymentCallbackConsumerAdapter{reader: reader, handler: handler, topic: topic}
}

// Run 阻塞消费直到 ctx 取消。
func (a *PaymentCallbackConsumerAdapter) Run(ctx context.Context) error {
	a.wg.Add(1)
	defer a.wg.Done()

	log.Info().Str("topic", a.topic).Msg("payment callback consumer started")
	for {
		// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交 offset
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("topic", a.topic).Msg("payment callback consumer shutting down")
				return nil
			}
			log.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		a.processMessage(ctx, msg)

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// Stop 关闭 reader 并等待 Run 退出。
func (a *PaymentCallbackConsumerAdapter) Stop() error {
	err := a.reader.Close()
	a.wg.Wait()
	return err
}

// processMessage 反序列化回调并交给应用服务。业务拒绝的消息直接跳过，锁超时重试几次。
func (a *PaymentCallbackConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	ctx := logger.WithTrace(mq.ExtractTraceContext(parentCtx, msg.Headers))

	var cb port.PaymentCallback
	if err := json.Unmarshal(msg.Value, &cb); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("malformed payment callback skipped")
		return
	}

	for attempt := 1; ; attempt++ {
		err := a.handler.HandlePaymentCallback(ctx, cb)
		if err == nil {
			return
		}
		if !apperr.Retryable(err) || attempt >= callbackMaxAttempts {
			logger.Ctx(ctx).Warn().Err(err).Str("transaction_key", cb.TransactionKey).
				Int("attempt", attempt).Msg("payment callback not applied")
			return
		}
		select {
		case <-time.After(callbackRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}
