package infrastructure

import (
	"database/sql"
	"time"

	"fulfillment/internal/pkg/money"
	"fulfillment/internal/service/payment/domain"
)

// PaymentModel 对应数据库中的 payment 表
type PaymentModel struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	OrderID        int64          `gorm:"index;not null"`
	UserID         string         `gorm:"size:64;not null"`
	Amount         money.Money    `gorm:"type:decimal(19,2);not null"`
	PaymentMethod  domain.Method  `gorm:"size:16;not null"`
	CardType       string         `gorm:"size:32"`
	CardNo         string         `gorm:"size:32"`
	Status         domain.Status  `gorm:"size:16;not null"`
	TransactionKey sql.NullString `gorm:"size:64;uniqueIndex"`
	FailureReason  sql.NullString `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PaymentModel) TableName() string {
	return "payment"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ToDomainPayment 将数据库模型转换为领域模型
func ToDomainPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:             m.ID,
		OrderID:        m.OrderID,
		UserID:         m.UserID,
		Amount:         m.Amount,
		Method:         m.PaymentMethod,
		CardType:       m.CardType,
		CardNo:         m.CardNo,
		Status:         m.Status,
		TransactionKey: m.TransactionKey.String,
		FailureReason:  m.FailureReason.String,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomainPayment 将领域模型转换为数据库模型
func FromDomainPayment(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:             p.ID,
		OrderID:        p.OrderID,
		UserID:         p.UserID,
		Amount:         p.Amount,
		PaymentMethod:  p.Method,
		CardType:       p.CardType,
		CardNo:         p.CardNo,
		Status:         p.Status,
		TransactionKey: nullString(p.TransactionKey),
		FailureReason:  nullString(p.FailureReason),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
