package domain

import (
	"strings"
	"time"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/money"
)

// Status 是支付的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusSuccess, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusCancelled},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Method 是支付方式
type Method string

const (
	MethodCard  Method = "CARD"
	MethodPoint Method = "POINT"
)

var (
	ErrPaymentNotFound     = apperr.New(apperr.KindNotFound, "PAYMENT_NOT_FOUND")
	ErrInvalidPaymentState = apperr.New(apperr.KindInvalidState, "INVALID_PAYMENT_STATE")
	ErrInvalidPayment      = apperr.New(apperr.KindValidation, "INVALID_PAYMENT")
)

// Payment 是一次支付尝试，TransactionKey 在进入 PROCESSING 时分配且只分配一次
type Payment struct {
	ID             int64
	OrderID        int64
	UserID         string
	Amount         money.Money
	Method         Method
	CardType       string
	CardNo         string
	Status         Status
	TransactionKey string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateForCard 创建一笔卡支付，卡类型和卡号不能为空
func CreateForCard(orderID int64, userID string, amount money.Money, cardType, cardNo string, now time.Time) (*Payment, error) {
	if strings.TrimSpace(cardType) == "" || strings.TrimSpace(cardNo) == "" {
		return nil, ErrInvalidPayment.Of("card type and card number are required")
	}
	p, err := newPayment(orderID, userID, amount, MethodCard, now)
	if err != nil {
		return nil, err
	}
	p.CardType = cardType
	p.CardNo = cardNo
	return p, nil
}

// CreateForPoint 创建一笔积分支付
func CreateForPoint(orderID int64, userID string, amount money.Money, now time.Time) (*Payment, error) {
	return newPayment(orderID, userID, amount, MethodPoint, now)
}

func newPayment(orderID int64, userID string, amount money.Money, method Method, now time.Time) (*Payment, error) {
	if orderID <= 0 {
		return nil, ErrInvalidPayment.Of("order id must be positive: %d", orderID)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidPayment.Of("user id is required")
	}
	return &Payment{
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StartProcessing PENDING -> PROCESSING，同时分配交易号
func (p *Payment) StartProcessing(transactionKey string, now time.Time) error {
	if strings.TrimSpace(transactionKey) == "" {
		return ErrInvalidPayment.Of("transaction key is required")
	}
	if p.TransactionKey != "" {
		return ErrInvalidPaymentState.Of("payment %d already has transaction key %s", p.ID, p.TransactionKey)
	}
	if err := p.transition(StatusProcessing, now, "processing can only start from pending"); err != nil {
		return err
	}
	p.TransactionKey = transactionKey
	return nil
}

// CompleteSuccess PROCESSING -> SUCCESS
func (p *Payment) CompleteSuccess(now time.Time) error {
	return p.transition(StatusSuccess, now, "only a processing payment can succeed")
}

// CompleteFailure PROCESSING -> FAILED
func (p *Payment) CompleteFailure(reason string, now time.Time) error {
	if err := p.transition(StatusFailed, now, "only a processing payment can fail"); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// Cancel 成功的支付不能取消
func (p *Payment) Cancel(now time.Time) error {
	return p.transition(StatusCancelled, now, "payment cannot be cancelled")
}

// IsOpen 报告支付是否还在进行中
func (p *Payment) IsOpen() bool {
	return p.Status == StatusPending || p.Status == StatusProcessing
}

func (p *Payment) transition(next Status, now time.Time, reason string) error {
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidPaymentState.Of("%s: payment %d is %s", reason, p.ID, p.Status)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}
