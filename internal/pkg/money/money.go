// Package money 提供金额与数量两个非负值对象。
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"fulfillment/internal/pkg/apperr"
)

var (
	ErrInvalidAmount        = apperr.New(apperr.KindValidation, "INVALID_AMOUNT")
	ErrInvalidQuantity      = apperr.New(apperr.KindValidation, "INVALID_QUANTITY")
	ErrInsufficientQuantity = apperr.New(apperr.KindInsufficientResource, "INSUFFICIENT_QUANTITY")
)

// Money 是非负的十进制金额，相等性按数值比较而不是按表示形式。
type Money struct {
	value decimal.Decimal
}

// Zero 返回 0 元。
func Zero() Money { return Money{value: decimal.Zero} }

// New 校验并创建金额，负数返回 InvalidAmount。
func New(v decimal.Decimal) (Money, error) {
	if v.IsNegative() {
		return Money{}, ErrInvalidAmount.Of("amount must not be negative: %s", v.String())
	}
	return Money{value: v}, nil
}

// FromInt 以整数金额创建 Money。
func FromInt(v int64) (Money, error) {
	return New(decimal.NewFromInt(v))
}

// Parse 解析十进制字符串，例如 "10000" 或 "99.50"。
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount.Of("amount is not a decimal: %q", s)
	}
	return New(d)
}

// MustFromInt 仅用于常量和测试。
func MustFromInt(v int64) Money {
	m, err := FromInt(v)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.value }

func (m Money) String() string { return m.value.String() }

// Add 返回两者之和。
func (m Money) Add(o Money) (Money, error) {
	if m.value.IsNegative() || o.value.IsNegative() {
		return Money{}, ErrInvalidAmount.Of("cannot add negative amounts: %s + %s", m.value, o.value)
	}
	return Money{value: m.value.Add(o.value)}, nil
}

// Sub 返回差值，结果为负时返回 InvalidAmount。
func (m Money) Sub(o Money) (Money, error) {
	r := m.value.Sub(o.value)
	if r.IsNegative() {
		return Money{}, ErrInvalidAmount.Of("amount would become negative: %s - %s", m.value, o.value)
	}
	return Money{value: r}, nil
}

// Times 计算单价乘以数量，全程使用十进制运算。
func (m Money) Times(q Quantity) Money {
	return Money{value: m.value.Mul(decimal.NewFromInt(q.value))}
}

func (m Money) Cmp(o Money) int          { return m.value.Cmp(o.value) }
func (m Money) Equal(o Money) bool       { return m.value.Equal(o.value) }
func (m Money) LessThan(o Money) bool    { return m.value.LessThan(o.value) }
func (m Money) GreaterThan(o Money) bool { return m.value.GreaterThan(o.value) }
func (m Money) IsZero() bool             { return m.value.IsZero() }

// Min 返回较小者。
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Units 返回金额的整数部分，小数部分直接截断。
func (m Money) Units() int64 { return m.value.IntPart() }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.value.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount.Of("amount is not a decimal: %s", string(b))
	}
	v, err := New(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Value 让 Money 可以直接作为 GORM 列写入。
func (m Money) Value() (driver.Value, error) { return m.value.Value() }

// Scan 从数据库读取金额。
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.value = d
	return nil
}
