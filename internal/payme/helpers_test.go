package payme

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/biznespilot/payme-merchant/internal/accounts"
	"github.com/biznespilot/payme-merchant/internal/billing"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/migrate"
	"github.com/biznespilot/payme-merchant/pkg/outbox"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	ledger   Repository
	orders   billing.Repository
	accounts accounts.Repository
	events   *outbox.Repository
	account  models.PaymentAccount
	clock    *testClock
}

func testPaymeConfig() config.PaymeConfig {
	return config.PaymeConfig{
		CheckoutURL:          "https://checkout.paycom.uz",
		TestCheckoutURL:      "https://test.paycom.uz",
		DefaultLanguage:      "uz",
		TransactionTimeout:   12 * time.Hour,
		StatementLimit:       1000,
		AllowCancelAfterPaid: true,
		AuthFailureWindow:    time.Minute,
		AuthFailureLimit:     3,
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite3", "", "up"))
	return conn
}

func newFixture(t *testing.T, tune ...func(*config.PaymeConfig)) *fixture {
	t.Helper()
	conn := openTestDB(t)
	cfg := testPaymeConfig()
	for _, fn := range tune {
		fn(&cfg)
	}

	f := &fixture{
		conn:     conn,
		ledger:   NewRepository(conn),
		orders:   billing.NewRepository(conn),
		accounts: accounts.NewRepository(conn),
		events:   outbox.NewRepository(conn),
		clock:    newTestClock(),
	}
	f.account = f.seedAccount(t, uuid.New(), "merchant-1", "secret-key")

	svc, err := NewService(ServiceParams{
		DB:       db.FromConn(conn),
		Ledger:   f.ledger,
		Orders:   f.orders,
		Accounts: f.accounts,
		Outbox:   outbox.NewService(f.events, nil),
		Config:   cfg,
		Now:      f.clock.Now,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedAccount(t *testing.T, business uuid.UUID, merchantID, key string) models.PaymentAccount {
	t.Helper()
	account := &models.PaymentAccount{
		BusinessID:  business,
		Provider:    enums.PaymentProviderPayme,
		Name:        "Payme " + merchantID,
		MerchantID:  merchantID,
		MerchantKey: key,
		IsActive:    true,
	}
	require.NoError(t, f.accounts.Create(context.Background(), account))
	return *account
}

func (f *fixture) seedOrder(t *testing.T, business uuid.UUID, orderID string, amount int64) *models.PaymentTransaction {
	t.Helper()
	order := &models.PaymentTransaction{
		BusinessID: business,
		OrderID:    orderID,
		Amount:     amount,
		Provider:   enums.PaymentProviderPayme,
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func (f *fixture) reloadOrder(t *testing.T, id uuid.UUID) *models.PaymentTransaction {
	t.Helper()
	order, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func (f *fixture) ledgerRow(t *testing.T, gatewayID string) *models.PaymeTransaction {
	t.Helper()
	row, err := f.ledger.FindByGatewayID(context.Background(), f.account.BusinessID, gatewayID)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.PaymeTransaction{}).Count(&count).Error)
	return count
}

func (f *fixture) eventsOfType(t *testing.T, aggregateID uuid.UUID, eventType enums.OutboxEventType) []PaymentEventData {
	t.Helper()
	rows, err := f.events.ListByAggregate(context.Background(), aggregateID)
	require.NoError(t, err)
	var out []PaymentEventData
	for _, row := range rows {
		if row.EventType != eventType {
			continue
		}
		env, err := outbox.DecodeEnvelope(row.Payload)
		require.NoError(t, err)
		var data PaymentEventData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		out = append(out, data)
	}
	return out
}

func createParams(gatewayID, orderID string, amount string, gatewayTime int64) CreateParams {
	return CreateParams{
		ID:      gatewayID,
		Time:    &gatewayTime,
		Amount:  json.Number(amount),
		Account: &Account{OrderID: orderID},
	}
}

func cancelParams(gatewayID string, reason int) CancelParams {
	return CancelParams{ID: gatewayID, Reason: &reason}
}

func statementParams(from, to int64) StatementParams {
	return StatementParams{From: &from, To: &to}
}

func requireCode(t *testing.T, err *Error, code Code) {
	t.Helper()
	require.NotNil(t, err, "expected payme error %d", code)
	require.Equal(t, code, err.Code, "unexpected error: %v", err)
}
