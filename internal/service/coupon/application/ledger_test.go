package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/coupon/domain"
	"fulfillment/internal/service/coupon/infrastructure"
	"fulfillment/internal/store/memstore"
)

var issuedAt = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Ledger, *memstore.Store) {
	t.Helper()
	store := memstore.New(0)
	repo := infrastructure.NewMemoryCouponRepository(store)
	l := NewLedger(repo, store, noop.NewTracerProvider().Tracer("test"), nil).
		WithClock(func() time.Time { return issuedAt.Add(time.Hour) })
	return l, store
}

func issue(t *testing.T, l *Ledger, userID string, d domain.Discount, min int64) *domain.Coupon {
	t.Helper()
	c, err := domain.NewCoupon(userID, "summer", d, money.MustFromInt(min), issuedAt.Add(24*time.Hour), issuedAt)
	require.NoError(t, err)
	require.NoError(t, l.Issue(context.Background(), c))
	return c
}

func TestApplyFixedAmount(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 5000)

	discount, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
	require.NoError(t, err)
	assert.True(t, discount.Equal(money.MustFromInt(1000)))

	got, err := l.Get(ctx, c.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUsed, got.Status)
	assert.NotNil(t, got.UsedAt)
	assert.Equal(t, int64(1), got.Version)
}

func TestApplyOtherUsersCouponIsNotFound(t *testing.T) {
	l, _ := setup(t)
	c := issue(t, l, "owner", domain.FixedAmount(money.MustFromInt(1000)), 0)

	_, err := l.Apply(context.Background(), c.ID, "intruder", money.MustFromInt(10000))
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApplyTwiceFails(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)

	_, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
	require.NoError(t, err)
	_, err = l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
	assert.ErrorIs(t, err, domain.ErrCouponAlreadyUsed)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestApplyExpiredPersistsExpiryEvenWhenCallerRollsBack(t *testing.T) {
	ctx := context.Background()
	l, store := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)
	l.WithClock(func() time.Time { return issuedAt.Add(72 * time.Hour) })

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
		return err
	})
	require.ErrorIs(t, err, domain.ErrCouponExpired)

	got, err := l.Get(ctx, c.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
}

func TestApplyRolledBackWithEnclosingTransaction(t *testing.T) {
	ctx := context.Background()
	l, store := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000)); err != nil {
			return err
		}
		return apperr.Newf(apperr.KindInsufficientResource, "INSUFFICIENT_POINTS", "points short")
	})
	require.Error(t, err)

	got, err := l.Get(ctx, c.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Nil(t, got.UsedAt)
	assert.Equal(t, int64(0), got.Version)
}

func TestConcurrentApplyHasExactlyOneWinner(t *testing.T) {
	const attempts = 10
	l, _ := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)

	var succeeded, conflicted atomic.Int64
	var wg sync.WaitGroup
	startGate := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startGate
			_, err := l.Apply(context.Background(), c.ID, "user-1", money.MustFromInt(10000))
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicted.Add(1)
			}
		}()
	}
	close(startGate)
	wg.Wait()

	assert.Equal(t, int64(1), succeeded.Load())
	assert.Equal(t, int64(attempts-1), conflicted.Load())

	got, err := l.Get(context.Background(), c.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUsed, got.Status)
	assert.NotNil(t, got.UsedAt)
	assert.Equal(t, int64(1), got.Version)
}

func TestApplySucceedsWhenCompetingRedemptionRollsBack(t *testing.T) {
	ctx := context.Background()
	l, store := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)

	done := make(chan error, 1)
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
		require.NoError(t, err)

		go func() {
			_, err := l.Apply(context.Background(), c.ID, "user-1", money.MustFromInt(10000))
			done <- err
		}()
		// 让第二个核销排到行锁上
		time.Sleep(50 * time.Millisecond)
		return errors.New("order aborted")
	})
	require.Error(t, err)

	require.NoError(t, <-done, "a rolled-back redemption must not surface as Conflict")
	got, err := l.Get(ctx, c.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUsed, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestApplyConflictsWhenCompetingRedemptionCommits(t *testing.T) {
	ctx := context.Background()
	l, store := setup(t)
	c := issue(t, l, "user-1", domain.FixedAmount(money.MustFromInt(1000)), 0)

	done := make(chan error, 1)
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := l.Apply(ctx, c.ID, "user-1", money.MustFromInt(10000))
		require.NoError(t, err)

		go func() {
			_, err := l.Apply(context.Background(), c.ID, "user-1", money.MustFromInt(10000))
			done <- err
		}()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	err = <-done
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}
