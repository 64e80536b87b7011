package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/pkg/apperr"
)

func TestNewRejectsNegative(t *testing.T) {
	_, err := New(decimal.NewFromInt(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEqualityIsByValue(t *testing.T) {
	a, err := Parse("100.00")
	require.NoError(t, err)
	b := MustFromInt(100)

	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Cmp(b))
}

func TestAddAndSub(t *testing.T) {
	sum, err := MustFromInt(300).Add(MustFromInt(200))
	require.NoError(t, err)
	assert.True(t, sum.Equal(MustFromInt(500)))

	diff, err := sum.Sub(MustFromInt(500))
	require.NoError(t, err)
	assert.True(t, diff.IsZero())

	_, err = MustFromInt(100).Sub(MustFromInt(101))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "100 - 101")
}

func TestTimesUsesDecimalArithmetic(t *testing.T) {
	price, err := Parse("0.10")
	require.NoError(t, err)

	total := price.Times(MustQuantity(3))
	assert.True(t, total.Equal(mustParse(t, "0.3")))
}

func TestUnitsTruncates(t *testing.T) {
	assert.Equal(t, int64(9000), mustParse(t, "9000.99").Units())
}

func TestJSONRoundTripRejectsNegative(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"1500.50"`), &m))
	assert.True(t, m.Equal(mustParse(t, "1500.5")))

	err := json.Unmarshal([]byte(`"-1"`), &m)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestQuantitySub(t *testing.T) {
	q, err := MustQuantity(5).Sub(MustQuantity(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.Int64())

	_, err = MustQuantity(1).Sub(MustQuantity(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.Contains(t, err.Error(), "current=1, requested=2")

	_, err = NewQuantity(-1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func mustParse(t *testing.T, s string) Money {
	t.Helper()
	m, err := Parse(s)
	require.NoError(t, err)
	return m
}
