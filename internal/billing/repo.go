package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
)

var (
	// ErrAlreadyPaid is returned when MarkPaid finds the order already paid.
	ErrAlreadyPaid = errors.New("payment transaction already paid")
	// ErrNotFound is returned by mutations that match no row.
	ErrNotFound = errors.New("payment transaction not found")
)

// Repository handles order payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PaymentTransaction) error
	FindByOrderID(ctx context.Context, businessID uuid.UUID, orderID string) (*models.PaymentTransaction, error)
	FindByOrderIDForUpdate(ctx context.Context, businessID uuid.UUID, orderID string) (*models.PaymentTransaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, providerTransactionID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID, note string, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PaymentTransaction) error {
	if order == nil {
		return errors.New("payment transaction is required")
	}
	if order.Amount < 0 {
		return errors.New("amount must be non-negative")
	}
	if order.Status == "" {
		order.Status = enums.PaymentTransactionPending
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByOrderID returns nil, nil when the order does not exist for the business.
func (r *repository) FindByOrderID(ctx context.Context, businessID uuid.UUID, orderID string) (*models.PaymentTransaction, error) {
	return r.findByOrderID(r.db.WithContext(ctx), businessID, orderID)
}

// FindByOrderIDForUpdate is FindByOrderID holding a row lock until the
// surrounding transaction ends.
func (r *repository) FindByOrderIDForUpdate(ctx context.Context, businessID uuid.UUID, orderID string) (*models.PaymentTransaction, error) {
	return r.findByOrderID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), businessID, orderID)
}

func (r *repository) findByOrderID(q *gorm.DB, businessID uuid.UUID, orderID string) (*models.PaymentTransaction, error) {
	if orderID == "" {
		return nil, nil
	}
	var order models.PaymentTransaction
	err := q.Where("order_id = ?", orderID).
		Where("business_id = ?", businessID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) findByID(q *gorm.DB, id uuid.UUID) (*models.PaymentTransaction, error) {
	var order models.PaymentTransaction
	err := q.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID, providerTransactionID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                  enums.PaymentTransactionProcessing,
			"provider_transaction_id": providerTransactionID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid flips is_paid exactly once; a second call returns ErrAlreadyPaid.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Where("is_paid = ?", false).
		Updates(map[string]any{
			"is_paid": true,
			"status":  enums.PaymentTransactionCompleted,
			"paid_at": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyPaid
	}
	return nil
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, note string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_cancelled": true,
			"status":       enums.PaymentTransactionCancelled,
			"cancel_note":  note,
			"cancelled_at": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
