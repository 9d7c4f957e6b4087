package payme

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/outbox"
)

// staleReadLedger hides committed rows from lookups made inside a transaction,
// the view a creator has when a concurrent creator commits between its reads
// and its insert.
type staleReadLedger struct {
	Repository
	inTx bool
}

func (l staleReadLedger) WithTx(tx *gorm.DB) Repository {
	return staleReadLedger{Repository: l.Repository.WithTx(tx), inTx: true}
}

func (l staleReadLedger) FindByGatewayID(ctx context.Context, businessID uuid.UUID, gatewayID string) (*models.PaymeTransaction, error) {
	if l.inTx {
		return nil, nil
	}
	return l.Repository.FindByGatewayID(ctx, businessID, gatewayID)
}

func (l staleReadLedger) FindCreatedForOrderForUpdate(ctx context.Context, orderTransactionID uuid.UUID) (*models.PaymeTransaction, error) {
	if l.inTx {
		return nil, nil
	}
	return l.Repository.FindCreatedForOrderForUpdate(ctx, orderTransactionID)
}

func (f *fixture) racingService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:       db.FromConn(f.conn),
		Ledger:   staleReadLedger{Repository: f.ledger},
		Orders:   f.orders,
		Accounts: f.accounts,
		Outbox:   outbox.NewService(f.events, nil),
		Config:   testPaymeConfig(),
		Now:      f.clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func TestCreateTransactionLosingInsertRaceReplaysWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	won, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	f.clock.Advance(5 * time.Second)
	lost, err := f.racingService(t).CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)
	assert.Equal(t, won, lost)
	assert.Equal(t, won.CreateTime, lost.CreateTime)
	assert.Equal(t, enums.PaymeStateCreated, lost.State)
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestCreateTransactionLosingInsertRaceForAnotherOrderIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	other := f.seedOrder(t, f.account.BusinessID, "ORD-2", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	res, err := f.racingService(t).CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-2", "150000", 1000))
	assert.Nil(t, res)
	requireCode(t, err, CodeCouldNotPerform)
	assert.EqualValues(t, 1, f.ledgerCount(t))

	reloaded := f.reloadOrder(t, other.ID)
	assert.False(t, reloaded.IsPaid)
	assert.Nil(t, reloaded.ProviderTransactionID, "the losing insert is rolled back")
	assert.NotEqual(t, enums.PaymentTransactionProcessing, reloaded.Status)
}

func TestCreateTransactionLosingActiveOrderRaceIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	res, err := f.racingService(t).CreateTransaction(ctx, f.account, createParams("gtx-2", "ORD-1", "150000", 2000))
	assert.Nil(t, res)
	requireCode(t, err, CodeCouldNotPerform)
	assert.EqualValues(t, 1, f.ledgerCount(t))
	assert.Equal(t, enums.PaymeStateCreated, f.ledgerRow(t, "gtx-1").State)
}
