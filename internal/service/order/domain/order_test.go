package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

var now = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

type fixedApplier struct {
	discount money.Money
	err      error
	calls    int
	amount   money.Money
}

func (f *fixedApplier) Apply(_ context.Context, _ int64, _ string, orderAmount money.Money) (money.Money, error) {
	f.calls++
	f.amount = orderAmount
	return f.discount, f.err
}

func newOrderWithItems(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("user-1", now)
	require.NoError(t, err)
	require.NoError(t, o.AddItem(1, money.MustFromInt(10000), money.MustQuantity(2)))
	require.NoError(t, o.AddItem(2, money.MustFromInt(20000), money.MustQuantity(1)))
	return o
}

func TestAddItemComputesTotal(t *testing.T) {
	o := newOrderWithItems(t)

	assert.True(t, o.TotalPrice.Equal(money.MustFromInt(40000)))
	assert.True(t, o.FinalPrice().Equal(money.MustFromInt(40000)))
	assert.Len(t, o.Items, 2)
	assert.Equal(t, StatePending, o.Status)
}

func TestAddItemValidation(t *testing.T) {
	o, err := NewOrder("user-1", now)
	require.NoError(t, err)

	assert.ErrorIs(t, o.AddItem(0, money.MustFromInt(1), money.MustQuantity(1)), ErrInvalidOrder)
	assert.ErrorIs(t, o.AddItem(1, money.MustFromInt(1), money.MustQuantity(0)), ErrInvalidOrder)

	_, err = NewOrder(" ", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	o := newOrderWithItems(t)
	applier := &fixedApplier{discount: money.MustFromInt(1000)}

	require.NoError(t, o.ApplyCoupon(ctx, nil, applier))
	assert.Equal(t, 0, applier.calls)

	id := int64(7)
	require.NoError(t, o.ApplyCoupon(ctx, &id, applier))
	assert.Equal(t, 1, applier.calls)
	assert.True(t, applier.amount.Equal(money.MustFromInt(40000)))
	assert.True(t, o.DiscountAmount.Equal(money.MustFromInt(1000)))
	assert.True(t, o.FinalPrice().Equal(money.MustFromInt(39000)))

	err := o.ApplyCoupon(ctx, &id, applier)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 1, applier.calls)

	assert.ErrorIs(t, o.AddItem(3, money.MustFromInt(1), money.MustQuantity(1)), ErrInvalidOrderState)
}

func TestApplyCouponCapsDiscountAtTotal(t *testing.T) {
	o, err := NewOrder("user-1", now)
	require.NoError(t, err)
	require.NoError(t, o.AddItem(1, money.MustFromInt(500), money.MustQuantity(1)))

	id := int64(1)
	require.NoError(t, o.ApplyCoupon(context.Background(), &id, &fixedApplier{discount: money.MustFromInt(1000)}))
	assert.True(t, o.FinalPrice().IsZero())
}

func TestApplyCouponFailureLeavesOrderUntouched(t *testing.T) {
	o := newOrderWithItems(t)
	id := int64(1)

	err := o.ApplyCoupon(context.Background(), &id, &fixedApplier{err: apperr.Newf(apperr.KindConflict, "COUPON_CONFLICT", "lost race")})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Nil(t, o.CouponID)
	assert.True(t, o.DiscountAmount.IsZero())
}

func TestHappyPathReachesCompleted(t *testing.T) {
	o := newOrderWithItems(t)

	require.NoError(t, o.StartPayment(now))
	require.NoError(t, o.ProcessPayment(now))
	require.NoError(t, o.CompletePayment(now))
	assert.Equal(t, StateCompleted, o.Status)
	assert.True(t, o.Status.IsTerminal())

	err := o.CompletePayment(now)
	assert.ErrorIs(t, err, ErrInvalidOrderState)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGuards(t *testing.T) {
	t.Run("complete requires processing", func(t *testing.T) {
		o := newOrderWithItems(t)
		assert.ErrorIs(t, o.CompletePayment(now), ErrInvalidOrderState)
		require.NoError(t, o.StartPayment(now))
		assert.ErrorIs(t, o.CompletePayment(now), ErrInvalidOrderState)
		assert.Equal(t, StatePaymentPending, o.Status)
	})

	t.Run("start payment only from pending", func(t *testing.T) {
		o := newOrderWithItems(t)
		require.NoError(t, o.StartPayment(now))
		err := o.StartPayment(now)
		require.ErrorIs(t, err, ErrInvalidOrderState)
		assert.Contains(t, err.Error(), "payment can only start from pending")
	})

	t.Run("empty order cannot start payment", func(t *testing.T) {
		o, err := NewOrder("user-1", now)
		require.NoError(t, err)
		assert.ErrorIs(t, o.StartPayment(now), ErrInvalidOrder)
	})

	t.Run("fail payment moves to payment failed", func(t *testing.T) {
		o := newOrderWithItems(t)
		require.NoError(t, o.StartPayment(now))
		require.NoError(t, o.ProcessPayment(now))
		require.NoError(t, o.FailPayment(now))
		assert.Equal(t, StatePaymentFailed, o.Status)
		assert.ErrorIs(t, o.CompletePayment(now), ErrInvalidOrderState)
		require.NoError(t, o.Cancel(now))
	})

	t.Run("cancel from any non terminal state", func(t *testing.T) {
		for _, steps := range [][]func(*Order, time.Time) error{
			nil,
			{(*Order).StartPayment},
			{(*Order).StartPayment, (*Order).ProcessPayment},
		} {
			o := newOrderWithItems(t)
			for _, step := range steps {
				require.NoError(t, step(o, now))
			}
			require.NoError(t, o.Cancel(now))
			assert.Equal(t, StateCancelled, o.Status)
			assert.ErrorIs(t, o.Cancel(now), ErrInvalidOrderState)
		}
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		o := newOrderWithItems(t)
		require.NoError(t, o.StartPayment(now))
		require.NoError(t, o.ProcessPayment(now))
		require.NoError(t, o.CompletePayment(now))
		assert.ErrorIs(t, o.Cancel(now), ErrInvalidOrderState)
		assert.Equal(t, StateCompleted, o.Status)
	})
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, StatePending.CanTransitionTo(StatePaymentPending))
	assert.False(t, StatePending.CanTransitionTo(StateCompleted))
	assert.False(t, StatePaymentPending.CanTransitionTo(StateCompleted))
	assert.True(t, StateCancelled.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StatePaymentFailed.IsTerminal())
}

func TestCloneIsDeep(t *testing.T) {
	o := newOrderWithItems(t)
	id := int64(3)
	o.CouponID = &id

	cp := o.Clone()
	cp.Items[0].ProductID = 99
	*cp.CouponID = 4

	assert.Equal(t, int64(1), o.Items[0].ProductID)
	assert.Equal(t, int64(3), *o.CouponID)
}
