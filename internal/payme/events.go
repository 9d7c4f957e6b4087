package payme

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/outbox"
)

// PaymentEventData is the data member of payment.completed and
// payment.cancelled events.
type PaymentEventData struct {
	GatewayTransactionID string `json:"gatewayTransactionId"`
	OrderID              string `json:"orderId"`
	BusinessID           string `json:"businessId"`
	Amount               int64  `json:"amount"`
	State                int    `json:"state"`
	PerformTime          int64  `json:"performTime,omitempty"`
	CancelTime           int64  `json:"cancelTime,omitempty"`
	Reason               *int   `json:"reason,omitempty"`
	RefundRequired       bool   `json:"refundRequired,omitempty"`
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, row *models.PaymeTransaction, order *models.PaymentTransaction, at time.Time) error {
	if s.outbox == nil {
		return nil
	}
	data := PaymentEventData{
		GatewayTransactionID: row.GatewayTransactionID,
		OrderID:              order.OrderID,
		BusinessID:           order.BusinessID.String(),
		Amount:               row.Amount,
		State:                int(row.State),
		PerformTime:          row.PerformTime,
		CancelTime:           row.CancelTime,
		Reason:               row.Reason,
		RefundRequired:       row.State == enums.PaymeStateCancelledAfterComplete,
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePaymentTransaction,
		AggregateID:   order.ID,
		Actor: &outbox.ActorRef{
			Kind:       string(enums.PaymentProviderPayme),
			ID:         row.GatewayTransactionID,
			BusinessID: order.BusinessID.String(),
		},
		Data:       data,
		OccurredAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}
