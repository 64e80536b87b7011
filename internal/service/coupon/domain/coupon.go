package domain

import (
	"strings"
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

// Status 是优惠券的状态
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusUsed    Status = "USED"
	StatusExpired Status = "EXPIRED"
)

var (
	ErrCouponNotFound = apperr.New(apperr.KindNotFound, "COUPON_NOT_FOUND")
	// 已被使用与并发核销失败对调用方含义相同：券已被消耗
	ErrCouponAlreadyUsed = apperr.New(apperr.KindConflict, "COUPON_ALREADY_USED")
	ErrCouponConflict    = apperr.New(apperr.KindConflict, "COUPON_CONFLICT")
	ErrCouponNotUsable   = apperr.New(apperr.KindInvalidState, "COUPON_NOT_USABLE")
	ErrCouponExpired     = apperr.New(apperr.KindInvalidState, "COUPON_EXPIRED")
	ErrBelowMinimum      = apperr.New(apperr.KindValidation, "COUPON_BELOW_MINIMUM")
	ErrInvalidCoupon     = apperr.New(apperr.KindValidation, "INVALID_COUPON")
)

// Coupon 是发给某个用户的一张券，Version 用于乐观并发控制。
type Coupon struct {
	ID             int64
	UserID         string
	Name           string
	Discount       Discount
	MinOrderAmount money.Money
	Status         Status
	ExpiredAt      time.Time
	UsedAt         *time.Time
	Version        int64
	CreatedAt      time.Time
}

// NewCoupon 发放一张可用的券。
func NewCoupon(userID, name string, discount Discount, minOrderAmount money.Money, expiredAt, now time.Time) (*Coupon, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidCoupon.Of("coupon owner is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidCoupon.Of("coupon name is required")
	}
	if discount.Type != DiscountFixedAmount && discount.Type != DiscountFixedRate {
		return nil, ErrInvalidDiscount.Of("unknown discount type %q", discount.Type)
	}
	return &Coupon{
		UserID:         userID,
		Name:           name,
		Discount:       discount,
		MinOrderAmount: minOrderAmount,
		Status:         StatusActive,
		ExpiredAt:      expiredAt,
		CreatedAt:      now,
	}, nil
}

// Use 按顺序校验并核销，返回优惠额。
// 已过期的券会被置为 EXPIRED，同时返回 ErrCouponExpired。
func (c *Coupon) Use(orderAmount money.Money, now time.Time) (money.Money, error) {
	switch {
	case c.Status == StatusUsed:
		return money.Money{}, ErrCouponAlreadyUsed.Of("coupon %d has already been used", c.ID)
	case c.Status != StatusActive:
		return money.Money{}, ErrCouponNotUsable.Of("coupon %d is not usable: status=%s", c.ID, c.Status)
	case now.After(c.ExpiredAt):
		c.Status = StatusExpired
		return money.Money{}, ErrCouponExpired.Of("coupon %d expired at %s", c.ID, c.ExpiredAt.Format(time.RFC3339))
	case orderAmount.LessThan(c.MinOrderAmount):
		return money.Money{}, ErrBelowMinimum.Of("order amount %s is below the coupon minimum %s", orderAmount, c.MinOrderAmount)
	}

	discount := c.Discount.Compute(orderAmount)
	c.Status = StatusUsed
	usedAt := now
	c.UsedAt = &usedAt
	return discount, nil
}

// Clone 返回深拷贝。
func (c Coupon) Clone() Coupon {
	if c.UsedAt != nil {
		t := *c.UsedAt
		c.UsedAt = &t
	}
	if c.Discount.MaxAmount != nil {
		m := *c.Discount.MaxAmount
		c.Discount.MaxAmount = &m
	}
	return c
}
