package payme

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/metrics"
)

const authFailureScope = "payme_auth"

type accountLookup interface {
	FindActiveByMerchantID(ctx context.Context, provider enums.PaymentProvider, merchantID string) (*models.PaymentAccount, error)
}

type failureLimiter interface {
	FixedWindowCount(ctx context.Context, scope string) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type AuthenticatorParams struct {
	Accounts accountLookup
	// Limiter is optional; without it failed attempts are not throttled.
	Limiter failureLimiter
	Metrics *metrics.RPCMetrics
	Config  config.PaymeConfig
	Logger  *logger.Logger
}

// Authenticator checks the gateway's Basic credentials against the account
// registry.
type Authenticator struct {
	accounts accountLookup
	limiter  failureLimiter
	metrics  *metrics.RPCMetrics
	limit    int64
	window   time.Duration
	logg     *logger.Logger
}

func NewAuthenticator(params AuthenticatorParams) (*Authenticator, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account lookup required")
	}
	return &Authenticator{
		accounts: params.Accounts,
		limiter:  params.Limiter,
		metrics:  params.Metrics,
		limit:    int64(params.Config.AuthFailureLimit),
		window:   params.Config.AuthFailureWindow,
		logg:     params.Logger,
	}, nil
}

// Authenticate returns the active account whose merchant id and key match the
// Authorization header. Callers blocked by the failure throttle are rejected
// before the registry is consulted.
func (a *Authenticator) Authenticate(ctx context.Context, header, clientIP string) (*models.PaymentAccount, *Error) {
	if a.blocked(ctx, clientIP) {
		a.metrics.IncAuthFailure()
		return nil, NewError(CodeInsufficientPrivilege)
	}

	login, key, ok := parseBasic(header)
	if !ok {
		a.recordFailure(ctx, clientIP, "malformed authorization header")
		return nil, NewError(CodeInsufficientPrivilege)
	}

	account, err := a.accounts.FindActiveByMerchantID(ctx, enums.PaymentProviderPayme, login)
	if err != nil {
		return nil, internalError(fmt.Errorf("load payment account: %w", err))
	}
	if account == nil {
		a.recordFailure(ctx, clientIP, "unknown merchant")
		return nil, NewError(CodeInsufficientPrivilege)
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(account.MerchantKey)) != 1 {
		a.recordFailure(ctx, clientIP, "merchant key mismatch")
		return nil, NewError(CodeInsufficientPrivilege)
	}
	return account, nil
}

func (a *Authenticator) throttled() bool {
	return a.limiter != nil && a.limit > 0 && a.window > 0
}

func (a *Authenticator) blocked(ctx context.Context, clientIP string) bool {
	if !a.throttled() || clientIP == "" {
		return false
	}
	count, err := a.limiter.FixedWindowCount(ctx, a.scope(clientIP))
	if err != nil {
		a.warnThrottle(ctx, clientIP, err)
		return false
	}
	return count >= a.limit
}

func (a *Authenticator) recordFailure(ctx context.Context, clientIP, reason string) {
	a.metrics.IncAuthFailure()
	if a.logg != nil {
		logCtx := a.logg.WithFields(ctx, map[string]any{"client_ip": clientIP, "reason": reason})
		a.logg.Warn(logCtx, "payme auth rejected")
	}
	if !a.throttled() || clientIP == "" {
		return
	}
	if _, _, err := a.limiter.FixedWindowAllow(ctx, a.scope(clientIP), a.limit, a.window); err != nil {
		a.warnThrottle(ctx, clientIP, err)
	}
}

func (a *Authenticator) scope(clientIP string) string {
	return authFailureScope + ":" + clientIP
}

// warnThrottle logs a limiter failure. Authentication proceeds without the
// throttle.
func (a *Authenticator) warnThrottle(ctx context.Context, clientIP string, err error) {
	if a.logg == nil {
		return
	}
	logCtx := a.logg.WithFields(ctx, map[string]any{"client_ip": clientIP, "error": err.Error()})
	a.logg.Warn(logCtx, "payme auth throttle unavailable")
}

// parseBasic splits "Basic base64(login:key)". The key may contain colons.
func parseBasic(header string) (string, string, bool) {
	const prefix = "basic "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	login, key, ok := strings.Cut(string(decoded), ":")
	if !ok || login == "" || key == "" {
		return "", "", false
	}
	return login, key, true
}
