package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// Repository reads and maintains merchant credentials.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.PaymentAccount) error
	FindActiveByMerchantID(ctx context.Context, provider enums.PaymentProvider, merchantID string) (*models.PaymentAccount, error)
	FindByBusiness(ctx context.Context, businessID uuid.UUID, provider enums.PaymentProvider) (*models.PaymentAccount, error)
	TouchLastTransaction(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.PaymentAccount) error {
	if account == nil {
		return errors.New("account is required")
	}
	return r.db.WithContext(ctx).Create(account).Error
}

// FindActiveByMerchantID returns nil, nil when no active account matches.
func (r *repository) FindActiveByMerchantID(ctx context.Context, provider enums.PaymentProvider, merchantID string) (*models.PaymentAccount, error) {
	if merchantID == "" {
		return nil, nil
	}
	var account models.PaymentAccount
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Where("provider = ?", provider).
		Where("is_active = ?", true).
		Order("created_at ASC").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByBusiness(ctx context.Context, businessID uuid.UUID, provider enums.PaymentProvider) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Where("provider = ?", provider).
		Where("is_active = ?", true).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) TouchLastTransaction(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAccount{}).
		Where("id = ?", id).
		Update("last_transaction_at", at.UTC()).Error
}
