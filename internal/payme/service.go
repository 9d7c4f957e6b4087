package payme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/internal/accounts"
	"github.com/biznespilot/payme-merchant/internal/billing"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/outbox"
)

// ServiceParams wires the merchant API handlers.
type ServiceParams struct {
	DB       db.TxRunner
	Ledger   Repository
	Orders   billing.Repository
	Accounts accounts.Repository
	Outbox   outbox.Emitter
	Config   config.PaymeConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service implements the six merchant API methods. The authenticated account
// is passed to every call; the service holds no per-request state.
type Service struct {
	db       db.TxRunner
	ledger   Repository
	orders   billing.Repository
	accounts accounts.Repository
	outbox   outbox.Emitter
	cfg      config.PaymeConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:       params.DB,
		ledger:   params.Ledger,
		orders:   params.Orders,
		accounts: params.Accounts,
		outbox:   params.Outbox,
		cfg:      params.Config,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Handle decodes params for method and runs its handler.
func (s *Service) Handle(ctx context.Context, acct models.PaymentAccount, method Method, params json.RawMessage) (any, *Error) {
	switch method {
	case MethodCheckPerformTransaction:
		var p CheckPerformParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.CheckPerformTransaction(ctx, acct, p))
	case MethodCreateTransaction:
		var p CreateParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.CreateTransaction(ctx, acct, p))
	case MethodPerformTransaction:
		var p TransactionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.PerformTransaction(ctx, acct, p))
	case MethodCancelTransaction:
		var p CancelParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.CancelTransaction(ctx, acct, p))
	case MethodCheckTransaction:
		var p TransactionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.CheckTransaction(ctx, acct, p))
	case MethodGetStatement:
		var p StatementParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return reply(s.GetStatement(ctx, acct, p))
	case MethodUnknown:
	}
	return nil, NewError(CodeMethodNotFound)
}

func reply[T any](result *T, err *Error) (any, *Error) {
	if err != nil {
		return nil, err
	}
	return result, nil
}

func invalidAccount() *Error {
	return NewError(CodeInvalidAccount).WithData("order_id")
}

// CheckPerformTransaction reports whether the order can be paid. It never writes.
func (s *Service) CheckPerformTransaction(ctx context.Context, acct models.PaymentAccount, p CheckPerformParams) (*CheckPerformResult, *Error) {
	order, err := s.orders.FindByOrderID(ctx, acct.BusinessID, p.Account.OrderID)
	if err != nil {
		return nil, internalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, invalidAccount()
	}
	if !amountMatches(p.Amount, order.Amount) {
		return nil, NewError(CodeInvalidAmount).WithData("amount")
	}
	if order.IsPaid || order.IsCancelled {
		return nil, NewError(CodeCouldNotPerform)
	}
	return &CheckPerformResult{Allow: true}, nil
}

// CreateTransaction opens a ledger row for the order. A repeated gateway id
// replays the stored row without re-checking the order.
func (s *Service) CreateTransaction(ctx context.Context, acct models.PaymentAccount, p CreateParams) (*CreateResult, *Error) {
	var (
		result *CreateResult
		rpcErr *Error
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		order, err := orders.FindByOrderIDForUpdate(ctx, acct.BusinessID, p.Account.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			rpcErr = invalidAccount()
			return nil
		}
		if !amountMatches(p.Amount, order.Amount) {
			rpcErr = NewError(CodeInvalidAmount).WithData("amount")
			return nil
		}

		existing, err := ledger.FindByGatewayID(ctx, acct.BusinessID, p.ID)
		if err != nil {
			return fmt.Errorf("load payme transaction: %w", err)
		}
		if existing != nil {
			result, rpcErr = replayCreate(existing, order)
			return nil
		}

		if order.IsPaid || order.IsCancelled {
			rpcErr = NewError(CodeCouldNotPerform)
			return nil
		}

		now := s.now()
		active, err := ledger.FindCreatedForOrderForUpdate(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load active payme transaction: %w", err)
		}
		if active != nil {
			if !s.expired(active, now) {
				rpcErr = NewError(CodeCouldNotPerform)
				return nil
			}
			if err := s.cancelLocked(ctx, tx, active, order, ReasonTimeout, now, false); err != nil {
				return err
			}
		}

		state, err := Transition(stateNone, EventCreate)
		if err != nil {
			return err
		}
		row := &models.PaymeTransaction{
			GatewayTransactionID: p.ID,
			OrderTransactionID:   order.ID,
			BusinessID:           acct.BusinessID,
			Amount:               order.Amount,
			State:                state,
			GatewayTime:          *p.Time,
			CreateTime:           now.UnixMilli(),
		}
		if err := ledger.Create(ctx, row); err != nil {
			return fmt.Errorf("insert payme transaction: %w", err)
		}
		if err := orders.MarkProcessing(ctx, order.ID, p.ID); err != nil {
			return fmt.Errorf("mark order processing: %w", err)
		}
		if err := s.accounts.WithTx(tx).TouchLastTransaction(ctx, acct.ID, now); err != nil {
			return fmt.Errorf("touch account: %w", err)
		}
		result = createResult(row, order.OrderID)
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.replayCreateAfterConflict(ctx, acct, p)
		}
		return nil, internalError(err)
	}
	return result, rpcErr
}

// replayCreate answers a repeated CreateTransaction. A gateway id reused for a
// different order is refused.
func replayCreate(existing *models.PaymeTransaction, order *models.PaymentTransaction) (*CreateResult, *Error) {
	if existing.OrderTransactionID != order.ID {
		return nil, NewError(CodeCouldNotPerform)
	}
	return createResult(existing, order.OrderID), nil
}

// replayCreateAfterConflict runs after a concurrent creator won the insert
// race; the winner's row is read back and replayed.
func (s *Service) replayCreateAfterConflict(ctx context.Context, acct models.PaymentAccount, p CreateParams) (*CreateResult, *Error) {
	existing, err := s.ledger.FindByGatewayID(ctx, acct.BusinessID, p.ID)
	if err != nil {
		return nil, internalError(fmt.Errorf("reload payme transaction: %w", err))
	}
	if existing == nil {
		// The conflict was on the one-created-per-order index.
		return nil, NewError(CodeCouldNotPerform)
	}
	order, err := s.orders.FindByID(ctx, existing.OrderTransactionID)
	if err != nil {
		return nil, internalError(fmt.Errorf("reload order: %w", err))
	}
	if order == nil || order.OrderID != p.Account.OrderID {
		return nil, NewError(CodeCouldNotPerform)
	}
	return createResult(existing, order.OrderID), nil
}

// PerformTransaction completes a created transaction and credits the order.
// Repeated calls replay the stored perform_time.
func (s *Service) PerformTransaction(ctx context.Context, acct models.PaymentAccount, p TransactionParams) (*PerformResult, *Error) {
	var (
		result *PerformResult
		rpcErr *Error
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, order, err := s.lockEntry(ctx, tx, acct.BusinessID, p.ID)
		if err != nil {
			return err
		}
		if row == nil {
			rpcErr = NewError(CodeTransactionNotFound)
			return nil
		}

		switch row.State {
		case enums.PaymeStateCompleted:
			result = performResult(row, order.OrderID)
			return nil
		case enums.PaymeStateCancelled, enums.PaymeStateCancelledAfterComplete:
			rpcErr = NewError(CodeCouldNotPerform)
			return nil
		}

		now := s.now()
		if s.expired(row, now) {
			if err := s.cancelLocked(ctx, tx, row, order, ReasonTimeout, now, true); err != nil {
				return err
			}
			rpcErr = NewError(CodeCouldNotPerform)
			return nil
		}

		next, err := Transition(row.State, EventPerform)
		if err != nil {
			rpcErr = NewError(CodeCouldNotPerform)
			return nil
		}
		performTime := now.UnixMilli()
		if err := s.ledger.WithTx(tx).MarkPerformed(ctx, row.ID, performTime); err != nil {
			return fmt.Errorf("mark payme transaction performed: %w", err)
		}
		if err := s.orders.WithTx(tx).MarkPaid(ctx, order.ID, now); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		row.State = next
		row.PerformTime = performTime
		if err := s.emit(ctx, tx, enums.EventPaymentCompleted, row, order, now); err != nil {
			return err
		}
		if err := s.accounts.WithTx(tx).TouchLastTransaction(ctx, acct.ID, now); err != nil {
			return fmt.Errorf("touch account: %w", err)
		}
		result = performResult(row, order.OrderID)
		return nil
	})
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyPaid) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "gateway_transaction_id", p.ID), "order already paid by another transaction")
			}
			return nil, NewError(CodeCouldNotPerform)
		}
		return nil, internalError(err)
	}
	return result, rpcErr
}

// CancelTransaction voids a created transaction or reverses a completed one.
// Repeated calls replay the stored cancel_time.
func (s *Service) CancelTransaction(ctx context.Context, acct models.PaymentAccount, p CancelParams) (*CancelResult, *Error) {
	var (
		result *CancelResult
		rpcErr *Error
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, order, err := s.lockEntry(ctx, tx, acct.BusinessID, p.ID)
		if err != nil {
			return err
		}
		if row == nil {
			rpcErr = NewError(CodeTransactionNotFound)
			return nil
		}
		if row.State.IsCancelled() {
			result = cancelResult(row, order.OrderID)
			return nil
		}
		if row.State == enums.PaymeStateCompleted && !s.cfg.AllowCancelAfterPaid {
			rpcErr = NewError(CodeCouldNotCancel)
			return nil
		}

		now := s.now()
		if err := s.cancelLocked(ctx, tx, row, order, *p.Reason, now, true); err != nil {
			if errors.Is(err, ErrIllegalTransition) {
				rpcErr = NewError(CodeCouldNotCancel)
				return nil
			}
			return err
		}
		if err := s.accounts.WithTx(tx).TouchLastTransaction(ctx, acct.ID, now); err != nil {
			return fmt.Errorf("touch account: %w", err)
		}
		result = cancelResult(row, order.OrderID)
		return nil
	})
	if err != nil {
		return nil, internalError(err)
	}
	return result, rpcErr
}

// CheckTransaction returns the stored snapshot of a transaction.
func (s *Service) CheckTransaction(ctx context.Context, acct models.PaymentAccount, p TransactionParams) (*CheckResult, *Error) {
	row, err := s.ledger.FindByGatewayID(ctx, acct.BusinessID, p.ID)
	if err != nil {
		return nil, internalError(fmt.Errorf("load payme transaction: %w", err))
	}
	if row == nil {
		return nil, NewError(CodeTransactionNotFound)
	}
	order, err := s.orders.FindByID(ctx, row.OrderTransactionID)
	if err != nil {
		return nil, internalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, internalError(fmt.Errorf("order %s missing for payme transaction %s", row.OrderTransactionID, row.GatewayTransactionID))
	}
	return checkResult(row, order.OrderID), nil
}

// GetStatement lists the business's transactions created in [from, to]. The
// list is capped at the configured statement limit.
func (s *Service) GetStatement(ctx context.Context, acct models.PaymentAccount, p StatementParams) (*StatementResult, *Error) {
	from, to := *p.From, *p.To
	if from > to {
		return nil, NewError(CodeInvalidJSONRPC).WithData("from")
	}
	limit := s.cfg.StatementLimit
	query := limit
	if limit > 0 {
		query = limit + 1
	}
	entries, err := s.ledger.ListStatement(ctx, acct.BusinessID, from, to, query)
	if err != nil {
		return nil, internalError(fmt.Errorf("list statement: %w", err))
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"from": from, "to": to, "limit": limit})
			s.logg.Warn(logCtx, "payme statement truncated")
		}
	}
	out := make([]StatementTransaction, 0, len(entries))
	for _, entry := range entries {
		out = append(out, statementTransaction(entry))
	}
	return &StatementResult{Transactions: out}, nil
}

// lockEntry locks the order and then the ledger row for gatewayID. Every
// writer takes the order lock first.
func (s *Service) lockEntry(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, *models.PaymentTransaction, error) {
	ledger := s.ledger.WithTx(tx)
	peek, err := ledger.FindByGatewayID(ctx, businessID, gatewayID)
	if err != nil {
		return nil, nil, fmt.Errorf("load payme transaction: %w", err)
	}
	if peek == nil {
		return nil, nil, nil
	}
	order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, peek.OrderTransactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock order: %w", err)
	}
	if order == nil {
		return nil, nil, fmt.Errorf("order %s missing for payme transaction %s", peek.OrderTransactionID, gatewayID)
	}
	row, err := ledger.FindByGatewayIDForUpdate(ctx, businessID, gatewayID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock payme transaction: %w", err)
	}
	if row == nil {
		return nil, nil, fmt.Errorf("payme transaction %s vanished", gatewayID)
	}
	return row, order, nil
}

// cancelLocked applies the cancel transition to a row the caller holds locked
// and updates row in place. The order is only marked cancelled when
// cancelOrder is set.
func (s *Service) cancelLocked(ctx context.Context, tx *gorm.DB, row *models.PaymeTransaction, order *models.PaymentTransaction, reason int, now time.Time, cancelOrder bool) error {
	next, err := Transition(row.State, EventCancel)
	if err != nil {
		return err
	}
	cancelTime := now.UnixMilli()
	if err := s.ledger.WithTx(tx).MarkCancelled(ctx, row.ID, row.State, next, cancelTime, reason); err != nil {
		return fmt.Errorf("mark payme transaction cancelled: %w", err)
	}
	if cancelOrder {
		if err := s.orders.WithTx(tx).MarkCancelled(ctx, order.ID, cancelNote(reason), now); err != nil {
			return fmt.Errorf("mark order cancelled: %w", err)
		}
	}
	row.State = next
	row.CancelTime = cancelTime
	row.Reason = &reason
	return s.emit(ctx, tx, enums.EventPaymentCancelled, row, order, now)
}

func (s *Service) expired(row *models.PaymeTransaction, now time.Time) bool {
	if s.cfg.TransactionTimeout <= 0 {
		return false
	}
	return now.UnixMilli()-row.CreateTime > s.cfg.TransactionTimeout.Milliseconds()
}

// ExpireStale cancels created transactions that outlived the timeout with
// reason 4. Orders stay open so the payer can retry. It returns the number of
// transactions cancelled.
func (s *Service) ExpireStale(ctx context.Context, batch int) (int, error) {
	if s.cfg.TransactionTimeout <= 0 {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-s.cfg.TransactionTimeout).UnixMilli()
	stale, err := s.ledger.FindStaleCreated(ctx, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("list stale payme transactions: %w", err)
	}
	expired := 0
	for _, candidate := range stale {
		done := false
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			row, order, err := s.lockEntry(ctx, tx, candidate.BusinessID, candidate.GatewayTransactionID)
			if err != nil {
				return err
			}
			if row == nil || row.State != enums.PaymeStateCreated || !s.expired(row, now) {
				return nil
			}
			if err := s.cancelLocked(ctx, tx, row, order, ReasonTimeout, now, false); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("expire payme transaction %s: %w", candidate.GatewayTransactionID, err)
		}
		if done {
			expired++
		}
	}
	return expired, nil
}
