package payme

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// ErrStaleState is returned when a conditional state update matches no row
// because another writer moved the transaction first.
var ErrStaleState = errors.New("payme transaction state changed concurrently")

// LedgerEntry is a ledger row joined with the order it pays.
type LedgerEntry struct {
	models.PaymeTransaction
	OrderID string `gorm:"column:order_id"`
}

// Repository persists gateway transactions. Rows are never deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.PaymeTransaction) error
	FindByGatewayID(ctx context.Context, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error)
	FindByGatewayIDForUpdate(ctx context.Context, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error)
	FindCreatedForOrderForUpdate(ctx context.Context, orderTransactionID uuid.UUID) (*models.PaymeTransaction, error)
	MarkPerformed(ctx context.Context, id uuid.UUID, performTime int64) error
	MarkCancelled(ctx context.Context, id uuid.UUID, from, to enums.PaymeTransactionState, cancelTime int64, reason int) error
	ListStatement(ctx context.Context, businessID uuid.UUID, from, to int64, limit int) ([]LedgerEntry, error)
	FindStaleCreated(ctx context.Context, createdBefore int64, limit int) ([]models.PaymeTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.PaymeTransaction) error {
	if row == nil {
		return errors.New("payme transaction is required")
	}
	if !row.State.IsValid() {
		return errors.New("payme transaction state is invalid")
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByGatewayID returns nil, nil when the business has no such transaction.
func (r *repository) FindByGatewayID(ctx context.Context, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error) {
	return r.findByGatewayID(r.db.WithContext(ctx), businessID, gatewayID)
}

func (r *repository) FindByGatewayIDForUpdate(ctx context.Context, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error) {
	return r.findByGatewayID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), businessID, gatewayID)
}

func (r *repository) findByGatewayID(q *gorm.DB, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error) {
	if gatewayID == "" {
		return nil, nil
	}
	var row models.PaymeTransaction
	err := q.Where("gateway_transaction_id = ?", gatewayID).
		Where("business_id = ?", businessID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindCreatedForOrderForUpdate(ctx context.Context, orderTransactionID uuid.UUID) (*models.PaymeTransaction, error) {
	var row models.PaymeTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_transaction_id = ?", orderTransactionID).
		Where("state = ?", enums.PaymeStateCreated).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkPerformed moves a created row to completed. perform_time is only
// written by this transition.
func (r *repository) MarkPerformed(ctx context.Context, id uuid.UUID, performTime int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymeTransaction{}).
		Where("id = ?", id).
		Where("state = ?", enums.PaymeStateCreated).
		Updates(map[string]any{
			"state":        enums.PaymeStateCompleted,
			"perform_time": performTime,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// MarkCancelled moves a row from `from` to the cancelled state `to`.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, from, to enums.PaymeTransactionState, cancelTime int64, reason int) error {
	if !to.IsCancelled() {
		return errors.New("target state must be a cancellation state")
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymeTransaction{}).
		Where("id = ?", id).
		Where("state = ?", from).
		Updates(map[string]any{
			"state":       to,
			"cancel_time": cancelTime,
			"reason":      reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListStatement returns the business's transactions created in [from, to],
// oldest first, at most limit rows. limit <= 0 means no cap.
func (r *repository) ListStatement(ctx context.Context, businessID uuid.UUID, from, to int64, limit int) ([]LedgerEntry, error) {
	q := r.db.WithContext(ctx).
		Table("payme_transactions").
		Select("payme_transactions.*, payment_transactions.order_id").
		Joins("JOIN payment_transactions ON payment_transactions.id = payme_transactions.order_transaction_id").
		Where("payme_transactions.business_id = ?", businessID).
		Where("payme_transactions.create_time BETWEEN ? AND ?", from, to).
		Order("payme_transactions.create_time ASC").
		Order("payme_transactions.gateway_transaction_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []LedgerEntry
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindStaleCreated lists created rows whose create_time is older than
// createdBefore across all businesses.
func (r *repository) FindStaleCreated(ctx context.Context, createdBefore int64, limit int) ([]models.PaymeTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("state = ?", enums.PaymeStateCreated).
		Where("create_time < ?", createdBefore).
		Order("create_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.PaymeTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
