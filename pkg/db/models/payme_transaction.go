package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// PaymeTransaction is the ledger row for one gateway transaction. Times are
// epoch milliseconds; zero means unset.
type PaymeTransaction struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	GatewayTransactionID string                      `gorm:"column:gateway_transaction_id;not null;uniqueIndex:uq_payme_gateway_tx"`
	OrderTransactionID   uuid.UUID                   `gorm:"column:order_transaction_id;type:uuid;not null;index:uq_payme_one_created_per_order,unique,where:state = 1"`
	BusinessID           uuid.UUID                   `gorm:"column:business_id;type:uuid;not null;index:idx_payme_business_create_time,priority:1"`
	Amount               int64                       `gorm:"column:amount;not null"`
	State                enums.PaymeTransactionState `gorm:"column:state;not null"`
	GatewayTime          int64                       `gorm:"column:gateway_time;not null"`
	CreateTime           int64                       `gorm:"column:create_time;not null;index:idx_payme_business_create_time,priority:2"`
	PerformTime          int64                       `gorm:"column:perform_time;not null;default:0"`
	CancelTime           int64                       `gorm:"column:cancel_time;not null;default:0"`
	Reason               *int                        `gorm:"column:reason"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymeTransaction) TableName() string { return "payme_transactions" }

func (p *PaymeTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
