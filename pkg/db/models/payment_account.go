package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// PaymentAccount holds a tenant's merchant credentials for one gateway.
type PaymentAccount struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID        uuid.UUID             `gorm:"column:business_id;type:uuid;not null;index"`
	Provider          enums.PaymentProvider `gorm:"column:provider;type:varchar(32);not null"`
	Name              string                `gorm:"column:name;not null"`
	MerchantID        string                `gorm:"column:merchant_id;not null;index"`
	MerchantKey       string                `gorm:"column:merchant_key;not null"`
	IsActive          bool                  `gorm:"column:is_active;not null;default:true"`
	IsTestMode        bool                  `gorm:"column:is_test_mode;not null;default:false"`
	LastTransactionAt *time.Time            `gorm:"column:last_transaction_at"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAccount) TableName() string { return "payment_accounts" }

func (a *PaymentAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
