package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newCoupon(t *testing.T, d Discount, min int64) *Coupon {
	t.Helper()
	c, err := NewCoupon("user-1", "welcome", d, money.MustFromInt(min), now.Add(24*time.Hour), now)
	require.NoError(t, err)
	c.ID = 1
	return c
}

func TestFixedRateDiscount(t *testing.T) {
	d, err := FixedRate(decimal.NewFromInt(10), nil)
	require.NoError(t, err)
	assert.True(t, d.Compute(money.MustFromInt(50000)).Equal(money.MustFromInt(5000)))

	limit := money.MustFromInt(3000)
	capped, err := FixedRate(decimal.NewFromInt(10), &limit)
	require.NoError(t, err)
	assert.True(t, capped.Compute(money.MustFromInt(50000)).Equal(money.MustFromInt(3000)))
}

func TestFixedRateRoundsDownToCents(t *testing.T) {
	d, err := FixedRate(decimal.RequireFromString("3.3"), nil)
	require.NoError(t, err)

	got := d.Compute(money.MustFromInt(999))
	// 999 * 3.3 / 100 = 32.967
	assert.Equal(t, "32.96", got.Decimal().StringFixed(2))
}

func TestFixedRateRejectsOutOfRange(t *testing.T) {
	_, err := FixedRate(decimal.Zero, nil)
	assert.ErrorIs(t, err, ErrInvalidDiscount)
	_, err = FixedRate(decimal.NewFromInt(101), nil)
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestUseMarksUsed(t *testing.T) {
	c := newCoupon(t, FixedAmount(money.MustFromInt(1000)), 5000)

	discount, err := c.Use(money.MustFromInt(10000), now)
	require.NoError(t, err)
	assert.True(t, discount.Equal(money.MustFromInt(1000)))
	assert.Equal(t, StatusUsed, c.Status)
	require.NotNil(t, c.UsedAt)
	assert.Equal(t, now, *c.UsedAt)
}

func TestUseValidationOrder(t *testing.T) {
	t.Run("already used", func(t *testing.T) {
		c := newCoupon(t, FixedAmount(money.MustFromInt(1000)), 0)
		c.Status = StatusUsed
		_, err := c.Use(money.MustFromInt(10000), now)
		assert.ErrorIs(t, err, ErrCouponAlreadyUsed)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("not active", func(t *testing.T) {
		c := newCoupon(t, FixedAmount(money.MustFromInt(1000)), 0)
		c.Status = StatusExpired
		_, err := c.Use(money.MustFromInt(10000), now)
		assert.ErrorIs(t, err, ErrCouponNotUsable)
	})

	t.Run("expired transitions status", func(t *testing.T) {
		c := newCoupon(t, FixedAmount(money.MustFromInt(1000)), 50000)
		_, err := c.Use(money.MustFromInt(100), now.Add(48*time.Hour))
		assert.ErrorIs(t, err, ErrCouponExpired)
		assert.Equal(t, StatusExpired, c.Status)
		assert.Nil(t, c.UsedAt)
	})

	t.Run("below minimum mentions the minimum", func(t *testing.T) {
		c := newCoupon(t, FixedAmount(money.MustFromInt(1000)), 5000)
		_, err := c.Use(money.MustFromInt(4000), now)
		require.ErrorIs(t, err, ErrBelowMinimum)
		assert.Contains(t, err.Error(), "5000")
		assert.Equal(t, StatusActive, c.Status)
	})
}

func TestCloneIsDeep(t *testing.T) {
	limit := money.MustFromInt(3000)
	d, err := FixedRate(decimal.NewFromInt(10), &limit)
	require.NoError(t, err)
	c := newCoupon(t, d, 0)
	_, err = c.Use(money.MustFromInt(1000), now)
	require.NoError(t, err)

	cp := c.Clone()
	*cp.UsedAt = now.Add(time.Hour)
	assert.Equal(t, now, *c.UsedAt)
	assert.NotSame(t, c.Discount.MaxAmount, cp.Discount.MaxAmount)
}
