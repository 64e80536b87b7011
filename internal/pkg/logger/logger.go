// Package logger 封装 zerolog 的全局配置和基于 context 的日志实例。
package logger

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"fulfillment/internal/pkg/tracing"
)

// Init 配置全局 logger，所有日志带上 service 字段。
func Init(serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zlog.With().Str("service", serviceName).Logger()
}

// Ctx 返回 context 中的 logger，没有注入时退回全局 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &zlog.Logger
	}
	return l
}

// WithTrace 把带 trace_id 的 logger 放进 context。
func WithTrace(ctx context.Context) context.Context {
	l := zlog.With()
	if traceID := tracing.GetTraceIDFromContext(ctx); traceID != "" {
		l = l.Str("trace_id", traceID)
	}
	logger := l.Logger()
	return logger.WithContext(ctx)
}

// Middleware 提取上游的追踪上下文并注入请求级 logger。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(WithTrace(ctx)))
	})
}

// MaskCardNo 只保留卡号后四位。
func MaskCardNo(no string) string {
	if len(no) <= 4 {
		return strings.Repeat("*", len(no))
	}
	return strings.Repeat("*", len(no)-4) + no[len(no)-4:]
}
