package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/money"
	couponapp "fulfillment/internal/service/coupon/application"
	coupondomain "fulfillment/internal/service/coupon/domain"
	inventoryapp "fulfillment/internal/service/inventory/application"
	pointapp "fulfillment/internal/service/point/application"
)

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	be, err := openBackend(bootstrap.StoreConfig{Driver: bootstrap.StoreMemory, LockTimeout: time.Second})
	require.NoError(t, err)

	tracer := noop.NewTracerProvider().Tracer("test")
	inventory := inventoryapp.NewLedger(be.products, be.tx, tracer, nil)
	coupons := couponapp.NewLedger(be.coupons, be.tx, tracer, nil)
	points := pointapp.NewLedger(be.points, be.tx, tracer, nil)

	cfg := bootstrap.SeedConfig{
		Users:    []bootstrap.SeedUser{{ID: "u1", Name: "alice", Points: 50000}},
		Products: []bootstrap.SeedProduct{{ID: 1, Name: "mug", Price: "10000", Stock: 5}},
		Coupons: []bootstrap.SeedCoupon{
			{UserID: "u1", Name: "welcome", Type: "FIXED_AMOUNT", Value: "1000"},
			{UserID: "u1", Name: "ten-off", Type: "fixed_rate", Value: "10", MaxAmount: "5000"},
		},
	}
	require.NoError(t, seed(ctx, cfg, be, inventory, coupons, points))

	_, err = points.Charge(ctx, "u1", 100)
	require.NoError(t, err)
	require.NoError(t, seed(ctx, cfg, be, inventory, coupons, points))

	balance, err := points.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50100), balance, "second run must not reopen the balance")

	product, err := inventory.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.True(t, product.Price.Equal(money.MustFromInt(10000)))

	rate, err := coupons.Get(ctx, 2, "u1")
	require.NoError(t, err)
	assert.Equal(t, coupondomain.DiscountFixedRate, rate.Discount.Type)

	_, err = coupons.Get(ctx, 3, "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "coupons are issued once")
}

func TestToCouponRejectsUnknownType(t *testing.T) {
	_, err := toCoupon(bootstrap.SeedCoupon{UserID: "u1", Name: "x", Type: "BOGO", Value: "1"}, time.Now())
	assert.Error(t, err)
}
