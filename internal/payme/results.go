package payme

import "github.com/biznespilot/payme-merchant/pkg/db/models"

// CheckPerformResult answers CheckPerformTransaction.
type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

// CreateResult answers CreateTransaction.
type CreateResult struct {
	CreateTime  int64  `json:"create_time"`
	Transaction string `json:"transaction"`
	State       State  `json:"state"`
}

// PerformResult answers PerformTransaction.
type PerformResult struct {
	Transaction string `json:"transaction"`
	PerformTime int64  `json:"perform_time"`
	State       State  `json:"state"`
}

// CancelResult answers CancelTransaction.
type CancelResult struct {
	Transaction string `json:"transaction"`
	CancelTime  int64  `json:"cancel_time"`
	State       State  `json:"state"`
}

// CheckResult answers CheckTransaction with every timestamp of the row.
type CheckResult struct {
	CreateTime  int64  `json:"create_time"`
	PerformTime int64  `json:"perform_time"`
	CancelTime  int64  `json:"cancel_time"`
	Transaction string `json:"transaction"`
	State       State  `json:"state"`
	Reason      *int   `json:"reason"`
}

// StatementAccount is the account object echoed in a statement entry.
type StatementAccount struct {
	OrderID string `json:"order_id"`
}

// StatementTransaction is one ledger row in a GetStatement reply.
type StatementTransaction struct {
	ID          string           `json:"id"`
	Time        int64            `json:"time"`
	Amount      int64            `json:"amount"`
	Account     StatementAccount `json:"account"`
	CreateTime  int64            `json:"create_time"`
	PerformTime int64            `json:"perform_time"`
	CancelTime  int64            `json:"cancel_time"`
	Transaction string           `json:"transaction"`
	State       State            `json:"state"`
	Reason      *int             `json:"reason"`
}

// StatementResult answers GetStatement.
type StatementResult struct {
	Transactions []StatementTransaction `json:"transactions"`
}

func createResult(row *models.PaymeTransaction, orderID string) *CreateResult {
	return &CreateResult{CreateTime: row.CreateTime, Transaction: orderID, State: row.State}
}

func performResult(row *models.PaymeTransaction, orderID string) *PerformResult {
	return &PerformResult{Transaction: orderID, PerformTime: row.PerformTime, State: row.State}
}

func cancelResult(row *models.PaymeTransaction, orderID string) *CancelResult {
	return &CancelResult{Transaction: orderID, CancelTime: row.CancelTime, State: row.State}
}

func checkResult(row *models.PaymeTransaction, orderID string) *CheckResult {
	return &CheckResult{
		CreateTime:  row.CreateTime,
		PerformTime: row.PerformTime,
		CancelTime:  row.CancelTime,
		Transaction: orderID,
		State:       row.State,
		Reason:      row.Reason,
	}
}

func statementTransaction(entry LedgerEntry) StatementTransaction {
	return StatementTransaction{
		ID:          entry.GatewayTransactionID,
		Time:        entry.GatewayTime,
		Amount:      entry.Amount,
		Account:     StatementAccount{OrderID: entry.OrderID},
		CreateTime:  entry.CreateTime,
		PerformTime: entry.PerformTime,
		CancelTime:  entry.CancelTime,
		Transaction: entry.OrderID,
		State:       entry.State,
		Reason:      entry.Reason,
	}
}
