package payme

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/enums"
)

func TestCheckPerformTransactionAllowsUnpaidOrderWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	for i := 0; i < 3; i++ {
		res, err := f.svc.CheckPerformTransaction(ctx, f.account, CheckPerformParams{
			Amount:  json.Number("150000"),
			Account: &Account{OrderID: "ORD-1"},
		})
		require.Nil(t, err)
		assert.True(t, res.Allow)
	}

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.PaymentTransactionPending, reloaded.Status)
	assert.False(t, reloaded.IsPaid)
	assert.Nil(t, reloaded.ProviderTransactionID)
	assert.Zero(t, f.ledgerCount(t))
}

func TestCheckPerformTransactionRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	paid := f.seedOrder(t, f.account.BusinessID, "ORD-PAID", 5000)
	require.NoError(t, f.orders.MarkPaid(ctx, paid.ID, f.clock.Now()))
	f.seedOrder(t, uuid.New(), "ORD-OTHER", 150000)

	cases := []struct {
		name    string
		orderID string
		amount  string
		code    Code
	}{
		{name: "unknown order", orderID: "ORD-404", amount: "150000", code: CodeInvalidAccount},
		{name: "other tenant", orderID: "ORD-OTHER", amount: "150000", code: CodeInvalidAccount},
		{name: "amount below", orderID: "ORD-1", amount: "149999", code: CodeInvalidAmount},
		{name: "amount above", orderID: "ORD-1", amount: "150001", code: CodeInvalidAmount},
		{name: "fractional amount", orderID: "ORD-1", amount: "150000.5", code: CodeInvalidAmount},
		{name: "already paid", orderID: "ORD-PAID", amount: "5000", code: CodeCouldNotPerform},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.CheckPerformTransaction(ctx, f.account, CheckPerformParams{
				Amount:  json.Number(tc.amount),
				Account: &Account{OrderID: tc.orderID},
			})
			assert.Nil(t, res)
			requireCode(t, err, tc.code)
		})
	}
}

func TestCreateTransactionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	first, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)
	assert.Equal(t, f.clock.Now().UnixMilli(), first.CreateTime)
	assert.Equal(t, "ORD-1", first.Transaction)
	assert.Equal(t, enums.PaymeStateCreated, first.State)

	f.clock.Advance(5 * time.Minute)
	second, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 999999))
	require.Nil(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.ledgerCount(t))

	row := f.ledgerRow(t, "gtx-1")
	assert.EqualValues(t, 1000, row.GatewayTime)
	assert.EqualValues(t, 150000, row.Amount)

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.PaymentTransactionProcessing, reloaded.Status)
	require.NotNil(t, reloaded.ProviderTransactionID)
	assert.Equal(t, "gtx-1", *reloaded.ProviderTransactionID)
	assert.False(t, reloaded.IsPaid)

	account, aerr := f.accounts.FindByBusiness(ctx, f.account.BusinessID, enums.PaymentProviderPayme)
	require.NoError(t, aerr)
	require.NotNil(t, account.LastTransactionAt)
}

func TestCreateTransactionAmountMismatchCreatesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	for _, amount := range []string{"1", "149999", "150001", "15000000", "-150000"} {
		res, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", amount, 1000))
		assert.Nil(t, res)
		requireCode(t, err, CodeInvalidAmount)
	}
	assert.Zero(t, f.ledgerCount(t))
}

func TestCreateTransactionRejectsUnknownOrder(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateTransaction(context.Background(), f.account, createParams("gtx-1", "ORD-404", "100", 1000))
	assert.Nil(t, res)
	requireCode(t, err, CodeInvalidAccount)
	assert.Equal(t, "order_id", err.Data)
	assert.Zero(t, f.ledgerCount(t))
}

func TestCreateTransactionRejectsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	require.NoError(t, f.orders.MarkPaid(ctx, order.ID, f.clock.Now()))

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	requireCode(t, err, CodeCouldNotPerform)
	assert.Zero(t, f.ledgerCount(t))
}

func TestCreateTransactionReplaysAfterOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	created, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)
	_, err = f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)

	replay, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 2000))
	require.Nil(t, err)
	assert.Equal(t, created.CreateTime, replay.CreateTime)
	assert.Equal(t, enums.PaymeStateCompleted, replay.State)
}

func TestCreateTransactionRefusesGatewayIDReusedForAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	f.seedOrder(t, f.account.BusinessID, "ORD-2", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)
	_, err = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-2", "150000", 1000))
	requireCode(t, err, CodeCouldNotPerform)
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestCreateTransactionBlocksSecondActiveTransactionUntilTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	_, err = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-2", "ORD-1", "150000", 2000))
	requireCode(t, err, CodeCouldNotPerform)

	f.clock.Advance(13 * time.Hour)
	res, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-2", "ORD-1", "150000", 3000))
	require.Nil(t, err)
	assert.Equal(t, enums.PaymeStateCreated, res.State)

	stale := f.ledgerRow(t, "gtx-1")
	assert.Equal(t, enums.PaymeStateCancelled, stale.State)
	require.NotNil(t, stale.Reason)
	assert.Equal(t, ReasonTimeout, *stale.Reason)
	assert.Equal(t, f.clock.Now().UnixMilli(), stale.CancelTime)

	reloaded := f.reloadOrder(t, order.ID)
	assert.False(t, reloaded.IsCancelled, "expiring a competing transaction keeps the order open")
	assert.Len(t, f.eventsOfType(t, order.ID, enums.EventPaymentCancelled), 1)
}

func TestConcurrentCreateTransactionYieldsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*CreateResult, workers)
	errs := make([]*Error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.clock.Advance(time.Millisecond)
			results[i], errs[i] = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", int64(i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.Nil(t, errs[i], "worker %d", i)
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].CreateTime, results[i].CreateTime, "worker %d", i)
		assert.Equal(t, enums.PaymeStateCreated, results[i].State)
	}
	assert.EqualValues(t, 1, f.ledgerCount(t))
}

func TestPaymentLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	check, err := f.svc.CheckPerformTransaction(ctx, f.account, CheckPerformParams{
		Amount:  json.Number("150000"),
		Account: &Account{OrderID: "ORD-1"},
	})
	require.Nil(t, err)
	assert.True(t, check.Allow)

	created, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1700000000000))
	require.Nil(t, err)
	assert.Equal(t, "ORD-1", created.Transaction)
	assert.Equal(t, enums.PaymeStateCreated, created.State)

	f.clock.Advance(30 * time.Second)
	performed, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)
	assert.Equal(t, "ORD-1", performed.Transaction)
	assert.Equal(t, enums.PaymeStateCompleted, performed.State)
	assert.Equal(t, f.clock.Now().UnixMilli(), performed.PerformTime)
	assert.Greater(t, performed.PerformTime, created.CreateTime)

	paid := f.reloadOrder(t, order.ID)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, enums.PaymentTransactionCompleted, paid.Status)
	require.NotNil(t, paid.PaidAt)
	firstPaidAt := *paid.PaidAt

	f.clock.Advance(time.Minute)
	again, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)
	assert.Equal(t, performed, again)
	assert.True(t, f.reloadOrder(t, order.ID).PaidAt.Equal(firstPaidAt))

	completed := f.eventsOfType(t, order.ID, enums.EventPaymentCompleted)
	require.Len(t, completed, 1, "the order is credited once")
	assert.Equal(t, "gtx-1", completed[0].GatewayTransactionID)
	assert.EqualValues(t, 150000, completed[0].Amount)

	f.clock.Advance(time.Hour)
	cancelled, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-1", ReasonExecutionError))
	require.Nil(t, err)
	assert.Equal(t, enums.PaymeStateCancelledAfterComplete, cancelled.State)
	assert.Equal(t, f.clock.Now().UnixMilli(), cancelled.CancelTime)

	reversed := f.reloadOrder(t, order.ID)
	assert.True(t, reversed.IsCancelled)
	assert.True(t, reversed.IsPaid)
	require.NotNil(t, reversed.CancelNote)
	assert.Equal(t, "Payme cancel reason: 3 (Transaction execution error)", *reversed.CancelNote)

	cancelEvents := f.eventsOfType(t, order.ID, enums.EventPaymentCancelled)
	require.Len(t, cancelEvents, 1)
	assert.True(t, cancelEvents[0].RefundRequired)

	snapshot, err := f.svc.CheckTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)
	assert.Equal(t, &CheckResult{
		CreateTime:  created.CreateTime,
		PerformTime: performed.PerformTime,
		CancelTime:  cancelled.CancelTime,
		Transaction: "ORD-1",
		State:       enums.PaymeStateCancelledAfterComplete,
		Reason:      snapshot.Reason,
	}, snapshot)
	require.NotNil(t, snapshot.Reason)
	assert.Equal(t, ReasonExecutionError, *snapshot.Reason)
}

func TestCancelCreatedTransactionNeverCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	cancelled, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-1", ReasonExecutionError))
	require.Nil(t, err)
	assert.Equal(t, enums.PaymeStateCancelled, cancelled.State)

	f.clock.Advance(time.Minute)
	replay, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-1", ReasonRefund))
	require.Nil(t, err)
	assert.Equal(t, cancelled, replay)

	for i := 0; i < 2; i++ {
		res, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
		assert.Nil(t, res)
		requireCode(t, err, CodeCouldNotPerform)
	}

	row := f.ledgerRow(t, "gtx-1")
	assert.Equal(t, enums.PaymeStateCancelled, row.State)
	assert.Zero(t, row.PerformTime)
	require.NotNil(t, row.Reason)
	assert.Equal(t, ReasonExecutionError, *row.Reason)

	reloaded := f.reloadOrder(t, order.ID)
	assert.False(t, reloaded.IsPaid)
	assert.True(t, reloaded.IsCancelled)
	assert.Empty(t, f.eventsOfType(t, order.ID, enums.EventPaymentCompleted))
	cancelEvents := f.eventsOfType(t, order.ID, enums.EventPaymentCancelled)
	require.Len(t, cancelEvents, 1)
	assert.False(t, cancelEvents[0].RefundRequired)
}

func TestCancelAfterCompleteRequiresComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-A", 100)
	f.seedOrder(t, f.account.BusinessID, "ORD-B", 100)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-a", "ORD-A", "100", 1))
	require.Nil(t, err)
	_, err = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-b", "ORD-B", "100", 1))
	require.Nil(t, err)
	_, err = f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-b"})
	require.Nil(t, err)

	a, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-a", ReasonRefund))
	require.Nil(t, err)
	b, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-b", ReasonRefund))
	require.Nil(t, err)

	assert.Equal(t, enums.PaymeStateCancelled, a.State)
	assert.Equal(t, enums.PaymeStateCancelledAfterComplete, b.State)
}

func TestCancelAfterPerformCanBeDisabled(t *testing.T) {
	f := newFixture(t, func(cfg *config.PaymeConfig) { cfg.AllowCancelAfterPaid = false })
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)
	_, err = f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)

	res, err := f.svc.CancelTransaction(ctx, f.account, cancelParams("gtx-1", ReasonRefund))
	assert.Nil(t, res)
	requireCode(t, err, CodeCouldNotCancel)
	assert.Equal(t, enums.PaymeStateCompleted, f.ledgerRow(t, "gtx-1").State)
	assert.False(t, f.reloadOrder(t, order.ID).IsCancelled)
}

func TestPerformExpiredTransactionCancelsWithTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	f.clock.Advance(12*time.Hour + time.Second)
	res, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	assert.Nil(t, res)
	requireCode(t, err, CodeCouldNotPerform)

	row := f.ledgerRow(t, "gtx-1")
	assert.Equal(t, enums.PaymeStateCancelled, row.State)
	require.NotNil(t, row.Reason)
	assert.Equal(t, ReasonTimeout, *row.Reason)

	reloaded := f.reloadOrder(t, order.ID)
	assert.False(t, reloaded.IsPaid)
	assert.True(t, reloaded.IsCancelled)
	require.NotNil(t, reloaded.CancelNote)
	assert.Equal(t, "Payme cancel reason: 4 (Transaction timeout)", *reloaded.CancelNote)
}

func TestTransactionLookupsRequireKnownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "missing"})
	requireCode(t, err, CodeTransactionNotFound)
	_, err = f.svc.CancelTransaction(ctx, f.account, cancelParams("missing", ReasonRefund))
	requireCode(t, err, CodeTransactionNotFound)
	_, err = f.svc.CheckTransaction(ctx, f.account, TransactionParams{ID: "missing"})
	requireCode(t, err, CodeTransactionNotFound)
}

func TestTransactionsAreScopedToTheAuthenticatedBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	other := f.seedAccount(t, uuid.New(), "merchant-2", "other-key")
	_, err = f.svc.CheckTransaction(ctx, other, TransactionParams{ID: "gtx-1"})
	requireCode(t, err, CodeTransactionNotFound)
	_, err = f.svc.PerformTransaction(ctx, other, TransactionParams{ID: "gtx-1"})
	requireCode(t, err, CodeTransactionNotFound)
	_, err = f.svc.CreateTransaction(ctx, other, createParams("gtx-1", "ORD-1", "150000", 1000))
	requireCode(t, err, CodeInvalidAccount)
}

func TestCheckTransactionSnapshotOfCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)
	created, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "150000", 1000))
	require.Nil(t, err)

	snapshot, err := f.svc.CheckTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)
	assert.Equal(t, &CheckResult{
		CreateTime:  created.CreateTime,
		Transaction: "ORD-1",
		State:       enums.PaymeStateCreated,
	}, snapshot)

	encoded, jerr := json.Marshal(snapshot)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"create_time":`+jsonInt(created.CreateTime)+`,"perform_time":0,"cancel_time":0,"transaction":"ORD-1","state":1,"reason":null}`, string(encoded))
}

func TestGetStatementListsRangeInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 100)
	f.seedOrder(t, f.account.BusinessID, "ORD-2", 200)
	f.seedOrder(t, f.account.BusinessID, "ORD-3", 300)

	start := f.clock.Now().UnixMilli()
	for i, orderID := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		amount := []string{"100", "200", "300"}[i]
		_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-"+orderID, orderID, amount, int64(i)))
		require.Nil(t, err)
		f.clock.Advance(time.Second)
	}
	_, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-ORD-2"})
	require.Nil(t, err)

	other := f.seedAccount(t, uuid.New(), "merchant-2", "other-key")
	f.seedOrder(t, other.BusinessID, "ORD-X", 100)
	_, err = f.svc.CreateTransaction(ctx, other, createParams("gtx-X", "ORD-X", "100", 1))
	require.Nil(t, err)

	res, err := f.svc.GetStatement(ctx, f.account, statementParams(start, start+1000))
	require.Nil(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "gtx-ORD-1", res.Transactions[0].ID)
	assert.Equal(t, "gtx-ORD-2", res.Transactions[1].ID)
	assert.Equal(t, "ORD-2", res.Transactions[1].Account.OrderID)
	assert.Equal(t, "ORD-2", res.Transactions[1].Transaction)
	assert.EqualValues(t, 200, res.Transactions[1].Amount)
	assert.EqualValues(t, 1, res.Transactions[1].Time)
	assert.Equal(t, enums.PaymeStateCompleted, res.Transactions[1].State)
	assert.NotZero(t, res.Transactions[1].PerformTime)

	all, err := f.svc.GetStatement(ctx, f.account, statementParams(0, start+time.Hour.Milliseconds()))
	require.Nil(t, err)
	assert.Len(t, all.Transactions, 3)

	empty, err := f.svc.GetStatement(ctx, f.account, statementParams(0, 1))
	require.Nil(t, err)
	require.NotNil(t, empty.Transactions)
	assert.Empty(t, empty.Transactions)

	_, err = f.svc.GetStatement(ctx, f.account, statementParams(10, 1))
	requireCode(t, err, CodeInvalidJSONRPC)
}

func TestGetStatementHonoursLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.PaymeConfig) { cfg.StatementLimit = 2 })
	ctx := context.Background()
	for i, orderID := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		f.seedOrder(t, f.account.BusinessID, orderID, 100)
		_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-"+orderID, orderID, "100", int64(i)))
		require.Nil(t, err)
		f.clock.Advance(time.Second)
	}

	res, err := f.svc.GetStatement(ctx, f.account, statementParams(0, f.clock.Now().UnixMilli()))
	require.Nil(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "gtx-ORD-1", res.Transactions[0].ID)
	assert.Equal(t, "gtx-ORD-2", res.Transactions[1].ID)
}

func TestHandleDecodesParamsPerMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 150000)

	cases := []struct {
		name   string
		method Method
		params string
		code   Code
	}{
		{name: "missing account", method: MethodCheckPerformTransaction, params: `{"amount":150000}`, code: CodeInvalidAccount},
		{name: "missing order id", method: MethodCreateTransaction, params: `{"id":"gtx-1","time":1,"amount":150000,"account":{}}`, code: CodeInvalidAccount},
		{name: "missing amount", method: MethodCheckPerformTransaction, params: `{"account":{"order_id":"ORD-1"}}`, code: CodeInvalidJSONRPC},
		{name: "missing id", method: MethodPerformTransaction, params: `{}`, code: CodeInvalidJSONRPC},
		{name: "missing reason", method: MethodCancelTransaction, params: `{"id":"gtx-1"}`, code: CodeInvalidJSONRPC},
		{name: "wrong type", method: MethodCheckTransaction, params: `{"id":42}`, code: CodeInvalidJSONRPC},
		{name: "statement missing to", method: MethodGetStatement, params: `{"from":0}`, code: CodeInvalidJSONRPC},
		{name: "unknown method", method: MethodUnknown, params: `{}`, code: CodeMethodNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.Handle(ctx, f.account, tc.method, json.RawMessage(tc.params))
			assert.Nil(t, res)
			requireCode(t, err, tc.code)
		})
	}

	res, err := f.svc.Handle(ctx, f.account, MethodCheckPerformTransaction, json.RawMessage(`{"amount":150000,"account":{"order_id":"ORD-1"}}`))
	require.Nil(t, err)
	assert.Equal(t, &CheckPerformResult{Allow: true}, res)

	res, err = f.svc.Handle(ctx, f.account, MethodCreateTransaction, json.RawMessage(`{"id":"gtx-1","time":1,"amount":"150000","account":{"order_id":"ORD-1"}}`))
	require.Nil(t, err)
	created, ok := res.(*CreateResult)
	require.True(t, ok)
	assert.Equal(t, enums.PaymeStateCreated, created.State)
}

func TestExpireStaleCancelsOnlyTimedOutTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oldOrder := f.seedOrder(t, f.account.BusinessID, "ORD-OLD", 100)
	f.seedOrder(t, f.account.BusinessID, "ORD-NEW", 100)
	f.seedOrder(t, f.account.BusinessID, "ORD-DONE", 100)

	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-old", "ORD-OLD", "100", 1))
	require.Nil(t, err)
	_, err = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-done", "ORD-DONE", "100", 1))
	require.Nil(t, err)
	_, err = f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-done"})
	require.Nil(t, err)

	f.clock.Advance(11 * time.Hour)
	_, err = f.svc.CreateTransaction(ctx, f.account, createParams("gtx-new", "ORD-NEW", "100", 1))
	require.Nil(t, err)
	f.clock.Advance(2 * time.Hour)

	n, xerr := f.svc.ExpireStale(ctx, 10)
	require.NoError(t, xerr)
	assert.Equal(t, 1, n)

	assert.Equal(t, enums.PaymeStateCancelled, f.ledgerRow(t, "gtx-old").State)
	assert.Equal(t, enums.PaymeStateCreated, f.ledgerRow(t, "gtx-new").State)
	assert.Equal(t, enums.PaymeStateCompleted, f.ledgerRow(t, "gtx-done").State)
	assert.False(t, f.reloadOrder(t, oldOrder.ID).IsCancelled)

	n, xerr = f.svc.ExpireStale(ctx, 10)
	require.NoError(t, xerr)
	assert.Zero(t, n)
}

func TestExpireStaleDisabledWithoutTimeout(t *testing.T) {
	f := newFixture(t, func(cfg *config.PaymeConfig) { cfg.TransactionTimeout = 0 })
	ctx := context.Background()
	f.seedOrder(t, f.account.BusinessID, "ORD-1", 100)
	_, err := f.svc.CreateTransaction(ctx, f.account, createParams("gtx-1", "ORD-1", "100", 1))
	require.Nil(t, err)

	f.clock.Advance(48 * time.Hour)
	n, xerr := f.svc.ExpireStale(ctx, 10)
	require.NoError(t, xerr)
	assert.Zero(t, n)

	performed, err := f.svc.PerformTransaction(ctx, f.account, TransactionParams{ID: "gtx-1"})
	require.Nil(t, err)
	assert.Equal(t, enums.PaymeStateCompleted, performed.State)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
