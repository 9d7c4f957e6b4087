package payme

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
)

var supportedLanguages = map[string]bool{"ru": true, "uz": true, "en": true}

// CheckoutLinker renders hosted checkout links for Payme accounts.
type CheckoutLinker struct {
	baseURL     string
	testBaseURL string
	defaultLang string
}

func NewCheckoutLinker(cfg config.PaymeConfig) *CheckoutLinker {
	lang := strings.ToLower(strings.TrimSpace(cfg.DefaultLanguage))
	if !supportedLanguages[lang] {
		lang = "uz"
	}
	return &CheckoutLinker{
		baseURL:     strings.TrimRight(cfg.CheckoutURL, "/"),
		testBaseURL: strings.TrimRight(cfg.TestCheckoutURL, "/"),
		defaultLang: lang,
	}
}

// CheckoutURL returns <base>/<base64("m=..;ac.order_id=..;a=..[;c=..];l=..")>.
// The amount is the order amount in tiyin. Test-mode accounts use the sandbox
// checkout host.
func (l *CheckoutLinker) CheckoutURL(account models.PaymentAccount, order models.PaymentTransaction, returnURL, lang string) (string, error) {
	if account.MerchantID == "" {
		return "", errors.New("merchant id is required")
	}
	if order.OrderID == "" {
		return "", errors.New("order id is required")
	}
	base := l.baseURL
	if account.IsTestMode {
		base = l.testBaseURL
	}
	if base == "" {
		return "", errors.New("checkout url is not configured")
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if !supportedLanguages[lang] {
		lang = l.defaultLang
	}

	parts := []string{
		"m=" + account.MerchantID,
		"ac.order_id=" + order.OrderID,
		"a=" + strconv.FormatInt(order.Amount, 10),
	}
	if returnURL = strings.TrimSpace(returnURL); returnURL != "" {
		parts = append(parts, "c="+returnURL)
	}
	parts = append(parts, "l="+lang)

	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, ";")))
	return base + "/" + encoded, nil
}
