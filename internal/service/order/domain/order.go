// internal/service/order/domain/order.go
package domain

import (
	"context"
	"strings"
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

var (
	ErrOrderNotFound     = apperr.New(apperr.KindNotFound, "ORDER_NOT_FOUND")
	ErrInvalidOrderState = apperr.New(apperr.KindInvalidState, "INVALID_ORDER_STATE")
	ErrInvalidOrder      = apperr.New(apperr.KindValidation, "INVALID_ORDER")
)

// Item 是订单行，创建后不再修改
type Item struct {
	ProductID int64
	UnitPrice money.Money
	Quantity  money.Quantity
}

// Subtotal = 单价 × 数量
func (i Item) Subtotal() money.Money {
	return i.UnitPrice.Times(i.Quantity)
}

// CouponApplier 是订单应用优惠券时依赖的台账能力
type CouponApplier interface {
	Apply(ctx context.Context, couponID int64, userID string, orderAmount money.Money) (money.Money, error)
}

// Order 是订单聚合的根实体
type Order struct {
	ID             int64
	UserID         string
	Items          []Item
	TotalPrice     money.Money
	DiscountAmount money.Money
	CouponID       *int64
	Status         State
	OrderedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder 创建一个 PENDING 状态的空订单
func NewOrder(userID string, now time.Time) (*Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidOrder.Of("user id is required")
	}
	return &Order{
		UserID:         userID,
		TotalPrice:     money.Zero(),
		DiscountAmount: money.Zero(),
		Status:         StatePending,
		OrderedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// AddItem 追加订单行并重新计算总价。只允许在 PENDING 且尚未使用优惠券时调用。
func (o *Order) AddItem(productID int64, unitPrice money.Money, qty money.Quantity) error {
	if o.Status != StatePending || o.CouponID != nil {
		return ErrInvalidOrderState.Of("items can only be added to a pending order before discount: order %d is %s", o.ID, o.Status)
	}
	if productID <= 0 {
		return ErrInvalidOrder.Of("product id must be positive: %d", productID)
	}
	if qty.IsZero() {
		return ErrInvalidOrder.Of("quantity for product %d must be positive", productID)
	}

	item := Item{ProductID: productID, UnitPrice: unitPrice, Quantity: qty}
	total, err := o.TotalPrice.Add(item.Subtotal())
	if err != nil {
		return err
	}
	o.Items = append(o.Items, item)
	o.TotalPrice = total
	return nil
}

// ApplyCoupon 通过优惠券台账核销并记录优惠额。couponID 为空时什么也不做；
// 同一订单只能使用一次优惠券。固定金额券超过订单总价时按总价封顶。
func (o *Order) ApplyCoupon(ctx context.Context, couponID *int64, applier CouponApplier) error {
	if couponID == nil {
		return nil
	}
	if o.CouponID != nil {
		return ErrInvalidOrderState.Of("a coupon has already been applied to order %d", o.ID)
	}
	if o.Status != StatePending {
		return ErrInvalidOrderState.Of("coupon can only be applied to a pending order: order %d is %s", o.ID, o.Status)
	}

	discount, err := applier.Apply(ctx, *couponID, o.UserID, o.TotalPrice)
	if err != nil {
		return err
	}
	id := *couponID
	o.CouponID = &id
	o.DiscountAmount = money.Min(discount, o.TotalPrice)
	return nil
}

// FinalPrice = 总价 - 优惠额，恒不小于 0
func (o *Order) FinalPrice() money.Money {
	final, err := o.TotalPrice.Sub(o.DiscountAmount)
	if err != nil {
		return money.Zero()
	}
	return final
}

// StartPayment PENDING -> PAYMENT_PENDING
func (o *Order) StartPayment(now time.Time) error {
	if len(o.Items) == 0 {
		return ErrInvalidOrder.Of("order %d has no items", o.ID)
	}
	return o.transition(StatePaymentPending, now, "payment can only start from pending")
}

// ProcessPayment PAYMENT_PENDING -> PAYMENT_PROCESSING
func (o *Order) ProcessPayment(now time.Time) error {
	return o.transition(StatePaymentProcessing, now, "payment can only be processed from payment pending")
}

// CompletePayment PAYMENT_PROCESSING -> COMPLETED
func (o *Order) CompletePayment(now time.Time) error {
	return o.transition(StateCompleted, now, "payment can only be completed while processing")
}

// FailPayment PAYMENT_PROCESSING -> PAYMENT_FAILED
func (o *Order) FailPayment(now time.Time) error {
	return o.transition(StatePaymentFailed, now, "payment can only fail while processing")
}

// Cancel 任意非终态 -> CANCELLED
func (o *Order) Cancel(now time.Time) error {
	return o.transition(StateCancelled, now, "completed or cancelled orders cannot be cancelled")
}

func (o *Order) transition(next State, now time.Time, reason string) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidOrderState.Of("%s: order %d is %s", reason, o.ID, o.Status)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// Clone 返回深拷贝
func (o Order) Clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	if o.CouponID != nil {
		id := *o.CouponID
		o.CouponID = &id
	}
	return o
}
