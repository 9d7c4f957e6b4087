package cron

import (
	"context"

	"gorm.io/gorm"
)

// Job names double as metric labels.
const (
	PaymeExpiryJobName     = "payme-transaction-expiry"
	OutboxRetentionJobName = "outbox-retention"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
