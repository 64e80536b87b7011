// Package metrics 定义履约服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fulfillment/internal/pkg/apperr"
)

const namespace = "fulfillment"

// Metrics 汇总台账、订单和支付回调三类指标。方法对 nil 接收者安全。
type Metrics struct {
	LedgerOps      *prometheus.CounterVec
	LedgerDuration *prometheus.HistogramVec
	Orders         *prometheus.CounterVec
	Callbacks      *prometheus.CounterVec
}

// New 创建指标并注册到 reg，reg 为 nil 时注册到默认 registry。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by ledger, operation and outcome.",
		}, []string{"ledger", "operation", "outcome"}),
		LedgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency including lock wait.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"ledger", "operation"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order creation attempts by outcome.",
		}, []string{"outcome"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callbacks_total",
			Help:      "Payment callbacks by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.LedgerOps, m.LedgerDuration, m.Orders, m.Callbacks)
	return m
}

// Outcome 把错误折叠成低基数的标签值。
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

// ObserveLedger 记录一次台账操作。
func (m *Metrics) ObserveLedger(ledger, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(ledger, op, Outcome(err)).Inc()
	m.LedgerDuration.WithLabelValues(ledger, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveOrder(err error) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(Outcome(err)).Inc()
}

func (m *Metrics) ObserveCallback(err error) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(Outcome(err)).Inc()
}

// Handler 暴露 /metrics。
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
