package domain

import (
	"github.com/shopspring/decimal"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

// DiscountType 是优惠方式的标签。
type DiscountType string

const (
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountFixedRate   DiscountType = "FIXED_RATE"
)

var (
	hundred            = decimal.NewFromInt(100)
	ErrInvalidDiscount = apperr.New(apperr.KindValidation, "INVALID_DISCOUNT")
)

// Discount 是带标签的优惠策略：FIXED_AMOUNT 只用 Amount，FIXED_RATE 使用 Rate 和可选的 MaxAmount。
type Discount struct {
	Type      DiscountType
	Amount    money.Money
	Rate      decimal.Decimal
	MaxAmount *money.Money
}

// FixedAmount 创建固定金额优惠。
func FixedAmount(amount money.Money) Discount {
	return Discount{Type: DiscountFixedAmount, Amount: amount}
}

// FixedRate 创建按比例优惠，rate 是百分比，取值 (0, 100]。
func FixedRate(rate decimal.Decimal, maxAmount *money.Money) (Discount, error) {
	if !rate.IsPositive() || rate.GreaterThan(hundred) {
		return Discount{}, ErrInvalidDiscount.Of("discount rate must be in (0, 100]: %s", rate)
	}
	return Discount{Type: DiscountFixedRate, Rate: rate, MaxAmount: maxAmount}, nil
}

// Compute 计算订单金额对应的优惠额。
// 按比例优惠向下取整到两位小数，再受 MaxAmount 限制。
func (d Discount) Compute(orderAmount money.Money) money.Money {
	switch d.Type {
	case DiscountFixedAmount:
		return d.Amount
	case DiscountFixedRate:
		raw := orderAmount.Decimal().Mul(d.Rate).Div(hundred).RoundDown(2)
		discount, err := money.New(raw)
		if err != nil {
			return money.Zero()
		}
		if d.MaxAmount != nil {
			return money.Min(discount, *d.MaxAmount)
		}
		return discount
	default:
		return money.Zero()
	}
}
