package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	pkgerrors "github.com/biznespilot/payme-merchant/pkg/errors"
)

// CheckoutLinker renders the hosted checkout URL for an order.
type CheckoutLinker interface {
	CheckoutURL(account models.PaymentAccount, order models.PaymentTransaction, returnURL, lang string) (string, error)
}

type accountFinder interface {
	FindByBusiness(ctx context.Context, businessID uuid.UUID, provider enums.PaymentProvider) (*models.PaymentAccount, error)
}

// ServiceParams configure the billing service.
type ServiceParams struct {
	Repo     Repository
	Accounts accountFinder
	Linker   CheckoutLinker
	Now      func() time.Time
}

// Service opens payable orders and hands back the checkout link.
type Service struct {
	repo     Repository
	accounts accountFinder
	linker   CheckoutLinker
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account finder required")
	}
	if params.Linker == nil {
		return nil, fmt.Errorf("checkout linker required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, accounts: params.Accounts, linker: params.Linker, now: now}, nil
}

type StartPaymentParams struct {
	BusinessID uuid.UUID
	// Amount in tiyin.
	Amount    int64
	ReturnURL string
	Language  string
}

type StartPaymentResult struct {
	Order      *models.PaymentTransaction
	PaymentURL string
}

// StartPayment creates a pending order for the business and returns the Payme
// checkout URL that pays it.
func (s *Service) StartPayment(ctx context.Context, params StartPaymentParams) (*StartPaymentResult, error) {
	if params.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if params.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	account, err := s.accounts.FindByBusiness(ctx, params.BusinessID, enums.PaymentProviderPayme)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active payme account for business")
	}

	order := &models.PaymentTransaction{
		BusinessID: params.BusinessID,
		OrderID:    GenerateOrderID(s.now()),
		Amount:     params.Amount,
		Status:     enums.PaymentTransactionPending,
		Provider:   enums.PaymentProviderPayme,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment transaction")
	}

	url, err := s.linker.CheckoutURL(*account, *order, params.ReturnURL, params.Language)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build checkout url")
	}
	return &StartPaymentResult{Order: order, PaymentURL: url}, nil
}

// GenerateOrderID returns ids like BP2603011530A1B2: prefix, yymmddHHMM, and
// four random hex characters.
func GenerateOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "BP" + now.UTC().Format("0601021504") + suffix
}
