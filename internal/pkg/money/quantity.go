package money

import "strconv"

// Quantity 是非负整数数量。
type Quantity struct {
	value int64
}

func NewQuantity(v int64) (Quantity, error) {
	if v < 0 {
		return Quantity{}, ErrInvalidQuantity.Of("quantity must not be negative: %d", v)
	}
	return Quantity{value: v}, nil
}

// MustQuantity 仅用于常量和测试。
func MustQuantity(v int64) Quantity {
	q, err := NewQuantity(v)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Int64() int64   { return q.value }
func (q Quantity) IsZero() bool   { return q.value == 0 }
func (q Quantity) String() string { return strconv.FormatInt(q.value, 10) }

func (q Quantity) Add(o Quantity) Quantity { return Quantity{value: q.value + o.value} }

// Sub 扣减数量，不足时返回 InsufficientQuantity 且不做任何修改。
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if q.value < o.value {
		return Quantity{}, ErrInsufficientQuantity.Of("insufficient quantity: current=%d, requested=%d", q.value, o.value)
	}
	return Quantity{value: q.value - o.value}, nil
}

func (q Quantity) LessThan(o Quantity) bool { return q.value < o.value }
