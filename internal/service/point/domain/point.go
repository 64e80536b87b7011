package domain

import (
	"context"
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

var (
	ErrPointNotFound      = apperr.New(apperr.KindNotFound, "POINT_NOT_FOUND")
	ErrInsufficientPoints = apperr.New(apperr.KindInsufficientResource, "INSUFFICIENT_POINTS")
	ErrInvalidPointAmount = apperr.New(apperr.KindValidation, "INVALID_AMOUNT")
)

// Point 是用户的积分余额，余额永远不为负。
type Point struct {
	UserID    string
	Balance   money.Quantity
	UpdatedAt time.Time
}

// Use 扣减积分。
func (p *Point) Use(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidPointAmount.Of("point amount must be positive: %d", amount)
	}
	left, err := p.Balance.Sub(money.MustQuantity(amount))
	if err != nil {
		return ErrInsufficientPoints.Of("insufficient points: current=%d, requested=%d", p.Balance.Int64(), amount)
	}
	p.Balance = left
	p.UpdatedAt = now
	return nil
}

// Charge 充值积分。
func (p *Point) Charge(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidPointAmount.Of("charge amount must be positive: %d", amount)
	}
	p.Balance = p.Balance.Add(money.MustQuantity(amount))
	p.UpdatedAt = now
	return nil
}

// PointRepository 定义积分余额的持久化接口。
// FindByUserIDForUpdate 必须在事务内调用，持有余额行的排他锁直到事务结束。
type PointRepository interface {
	Create(ctx context.Context, p *Point) error
	FindByUserID(ctx context.Context, userID string) (*Point, error)
	FindByUserIDForUpdate(ctx context.Context, userID string) (*Point, error)
	Save(ctx context.Context, p *Point) error
}
