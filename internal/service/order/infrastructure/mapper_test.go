package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/order/domain"
)

func TestMapperKeepsLineOrderAndCoupon(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	o, err := domain.NewOrder("user-1", now)
	require.NoError(t, err)
	require.NoError(t, o.AddItem(5, money.MustFromInt(300), money.MustQuantity(1)))
	require.NoError(t, o.AddItem(2, money.MustFromInt(100), money.MustQuantity(3)))
	coupon := int64(9)
	o.CouponID = &coupon
	o.DiscountAmount = money.MustFromInt(50)

	m := FromDomainOrder(o)
	// 模拟数据库返回的行顺序与插入顺序不同
	m.Items[0], m.Items[1] = m.Items[1], m.Items[0]

	back, err := ToDomainOrder(m)
	require.NoError(t, err)
	require.Len(t, back.Items, 2)
	assert.Equal(t, int64(5), back.Items[0].ProductID)
	assert.Equal(t, int64(2), back.Items[1].ProductID)
	require.NotNil(t, back.CouponID)
	assert.Equal(t, int64(9), *back.CouponID)
	assert.True(t, back.FinalPrice().Equal(money.MustFromInt(550)))
}
