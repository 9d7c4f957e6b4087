package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// PaymentTransaction is the tenant-facing record of an order awaiting payment.
// Amount is in minor units (tiyin) and never changes after creation.
type PaymentTransaction struct {
	ID                    uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID            uuid.UUID                      `gorm:"column:business_id;type:uuid;not null;index"`
	OrderID               string                         `gorm:"column:order_id;not null;uniqueIndex:uq_payment_transactions_order_id"`
	Amount                int64                          `gorm:"column:amount;not null"`
	IsPaid                bool                           `gorm:"column:is_paid;not null;default:false"`
	IsCancelled           bool                           `gorm:"column:is_cancelled;not null;default:false"`
	Status                enums.PaymentTransactionStatus `gorm:"column:status;type:varchar(32);not null;default:'pending'"`
	Provider              enums.PaymentProvider          `gorm:"column:provider;type:varchar(32);not null"`
	ProviderTransactionID *string                        `gorm:"column:provider_transaction_id"`
	CancelNote            *string                        `gorm:"column:cancel_note"`
	PaidAt                *time.Time                     `gorm:"column:paid_at"`
	CancelledAt           *time.Time                     `gorm:"column:cancelled_at"`
	CreatedAt             time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
