package application

import (
	"context"
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
	"fulfillment/internal/service/point/domain"
)

const ledgerName = "point"

var errUserRequired = apperr.New(apperr.KindValidation, "USER_ID_REQUIRED")

// Ledger 是积分台账，扣减和充值都在余额行的排他锁下进行。
type Ledger struct {
	repo    domain.PointRepository
	tx      txn.Manager
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedger(repo domain.PointRepository, tx txn.Manager, tracer trace.Tracer, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, tx: tx, tracer: tracer, metrics: m, now: time.Now}
}

// Use 扣减积分并返回新的余额。
func (l *Ledger) Use(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.mutate(ctx, "use", userID, amount, func(p *domain.Point) error {
		return p.Use(amount, l.now())
	})
}

// Charge 充值积分并返回新的余额。
func (l *Ledger) Charge(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.mutate(ctx, "charge", userID, amount, func(p *domain.Point) error {
		return p.Charge(amount, l.now())
	})
}

func (l *Ledger) mutate(ctx context.Context, op, userID string, amount int64, apply func(*domain.Point) error) (balance int64, err error) {
	ctx, span := l.tracer.Start(ctx, "point."+op)
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int64("point.amount", amount))

	start := time.Now()
	defer func() {
		l.metrics.ObserveLedger(ledgerName, op, start, err)
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	if strings.TrimSpace(userID) == "" {
		return 0, errUserRequired.Of("user id is required")
	}

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := l.repo.FindByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		if err := l.repo.Save(ctx, p); err != nil {
			return err
		}
		balance = p.Balance.Int64()
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Ctx(ctx).Info().Str("user_id", userID).Str("op", op).Int64("amount", amount).
		Int64("balance", balance).Msg("point balance changed")
	return balance, nil
}

// Balance 返回当前余额。
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	p, err := l.repo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.Balance.Int64(), nil
}

// Open 为用户创建余额行。用户注册在本服务之外，这里供初始化和测试使用。
func (l *Ledger) Open(ctx context.Context, userID string, initial int64) error {
	if strings.TrimSpace(userID) == "" {
		return errUserRequired.Of("user id is required")
	}
	balance, err := money.NewQuantity(initial)
	if err != nil {
		return err
	}
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		return l.repo.Create(ctx, &domain.Point{UserID: userID, Balance: balance, UpdatedAt: l.now()})
	})
}
