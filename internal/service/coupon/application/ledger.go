package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/pkg/tracing"
	"fulfillment/internal/pkg/txn"
	"fulfillment/internal/service/coupon/domain"
)

const ledgerName = "coupon"

// Ledger 是优惠券台账。核销走乐观并发：不加锁读取，写入时比较版本号。
type Ledger struct {
	repo    domain.CouponRepository
	tx      txn.Manager
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedger(repo domain.CouponRepository, tx txn.Manager, tracer trace.Tracer, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, tx: tx, tracer: tracer, metrics: m, now: time.Now}
}

// WithClock 替换时间源，用于测试过期逻辑。
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Apply 核销优惠券并返回优惠额。并发核销同一张券时只有一个成功，其余返回 Conflict。
func (l *Ledger) Apply(ctx context.Context, couponID int64, userID string, orderAmount money.Money) (discount money.Money, err error) {
	ctx, span := l.tracer.Start(ctx, "coupon.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", couponID),
		attribute.String("user.id", userID),
		attribute.String("order.amount", orderAmount.String()),
	)

	start := time.Now()
	defer func() {
		l.metrics.ObserveLedger(ledgerName, "apply", start, err)
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	if couponID <= 0 || strings.TrimSpace(userID) == "" {
		return money.Money{}, apperr.Newf(apperr.KindValidation, "INVALID_COUPON_REQUEST", "coupon id and user id are required")
	}

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		coupon, err := l.repo.FindByIDAndUser(ctx, couponID, userID)
		if err != nil {
			return err
		}

		d, err := coupon.Use(orderAmount, l.now())
		if errors.Is(err, domain.ErrCouponExpired) {
			l.persistExpiry(ctx, coupon)
			return err
		}
		if err != nil {
			return err
		}

		if err := l.repo.UpdateIfVersion(ctx, coupon); err != nil {
			return err
		}
		discount = d
		return nil
	})
	if err != nil {
		return money.Money{}, err
	}

	logger.Ctx(ctx).Info().Int64("coupon_id", couponID).Str("user_id", userID).
		Str("discount", discount.String()).Msg("coupon applied")
	return discount, nil
}

// persistExpiry 在独立事务中落库 EXPIRED 状态，不随外层事务回滚。
func (l *Ledger) persistExpiry(ctx context.Context, coupon *domain.Coupon) {
	err := l.tx.WithinTx(txn.Detach(ctx), func(ctx context.Context) error {
		return l.repo.UpdateIfVersion(ctx, coupon)
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("coupon_id", coupon.ID).Msg("failed to persist coupon expiry")
	}
}

// Issue 发放一张券。券的发放流程在本服务之外，这里主要用于初始化数据。
func (l *Ledger) Issue(ctx context.Context, coupon *domain.Coupon) error {
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		return l.repo.Create(ctx, coupon)
	})
}

// Get 查询用户的券。
func (l *Ledger) Get(ctx context.Context, couponID int64, userID string) (*domain.Coupon, error) {
	return l.repo.FindByIDAndUser(ctx, couponID, userID)
}
