package cron

import (
	"context"
	"fmt"

	"github.com/biznespilot/payme-merchant/pkg/logger"
)

const (
	defaultExpiryBatchSize = 200
	maxExpiryBatches       = 10
)

// PaymeExpiryJobParams configure the payme expiry job.
type PaymeExpiryJobParams struct {
	Logger    *logger.Logger
	Expirer   paymeExpirer
	BatchSize int
}

type paymeExpirer interface {
	ExpireStale(ctx context.Context, batch int) (int, error)
}

// NewPaymeExpiryJob cancels CREATED payme transactions whose timeout has
// elapsed with reason 4. Orders stay open so the payer can retry.
func NewPaymeExpiryJob(params PaymeExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("payme expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &paymeExpiryJob{logg: params.Logger, expirer: params.Expirer, batch: batch}, nil
}

type paymeExpiryJob struct {
	logg    *logger.Logger
	expirer paymeExpirer
	batch   int
}

func (j *paymeExpiryJob) Name() string { return PaymeExpiryJobName }

// Run drains full batches until a short one, capped so a hot backlog
// cannot monopolise the cycle.
func (j *paymeExpiryJob) Run(ctx context.Context) error {
	total := 0
	batches := 0
	for batches < maxExpiryBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.expirer.ExpireStale(ctx, j.batch)
		total += expired
		batches++
		if err != nil {
			return fmt.Errorf("payme expiry after %d transactions: %w", total, err)
		}
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired": total,
		"batches": batches,
	})
	if total > 0 {
		j.logg.Info(logCtx, "expired stale payme transactions")
		return nil
	}
	j.logg.Debug(logCtx, "no stale payme transactions")
	return nil
}
