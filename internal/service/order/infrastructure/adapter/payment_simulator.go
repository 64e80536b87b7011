package adapter

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/port"
)

const (
	DefaultSuccessRatio = 0.7
	simulatedDeclineMsg = "card limit exceeded"
)

// PaymentSimulator 是进程内的支付网关模拟器：受理请求后延迟一段时间，
// 按成功率随机给出结果，再调用回调处理器。
type PaymentSimulator struct {
	successRatio float64
	delay        time.Duration
	roll         func() float64

	mu      sync.RWMutex
	handler port.CallbackHandler

	wg sync.WaitGroup
}

// NewPaymentSimulator successRatio 取值 [0,1]，越界时使用 DefaultSuccessRatio
func NewPaymentSimulator(successRatio float64, delay time.Duration) *PaymentSimulator {
	if successRatio < 0 || successRatio > 1 {
		successRatio = DefaultSuccessRatio
	}
	return &PaymentSimulator{successRatio: successRatio, delay: delay, roll: rand.Float64}
}

// SetHandler 注入回调处理器。应用服务依赖网关，网关又回调应用服务，所以在组装完成后注入。
func (s *PaymentSimulator) SetHandler(h port.CallbackHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Submit 立即受理，结果异步回调。
func (s *PaymentSimulator) Submit(ctx context.Context, req port.PaymentRequest) error {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()

	cb := port.PaymentCallback{TransactionKey: req.TransactionKey, Outcome: port.OutcomeSuccess}
	if s.roll() >= s.successRatio {
		cb.Outcome = port.OutcomeFailed
		cb.Reason = simulatedDeclineMsg
	}

	// 回调脱离请求的生命周期，只保留 trace 关联
	cbCtx := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	cbCtx = logger.WithTrace(cbCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		if h == nil {
			logger.Ctx(cbCtx).Warn().Str("transaction_key", cb.TransactionKey).Msg("no callback handler, dropping simulated result")
			return
		}
		if err := h.HandlePaymentCallback(cbCtx, cb); err != nil {
			logger.Ctx(cbCtx).Warn().Err(err).Str("transaction_key", cb.TransactionKey).Msg("simulated callback rejected")
		}
	}()
	return nil
}

// Wait 等待所有已受理请求的回调结束
func (s *PaymentSimulator) Wait() { s.wg.Wait() }
