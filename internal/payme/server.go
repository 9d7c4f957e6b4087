package payme

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/biznespilot/payme-merchant/pkg/db/models"
	pkgerrors "github.com/biznespilot/payme-merchant/pkg/errors"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/metrics"
)

type authenticator interface {
	Authenticate(ctx context.Context, header, clientIP string) (*models.PaymentAccount, *Error)
}

type handler interface {
	Handle(ctx context.Context, acct models.PaymentAccount, method Method, params json.RawMessage) (any, *Error)
}

// Server turns a raw JSON-RPC body into a reply: parse, authenticate, then
// dispatch to the handler.
type Server struct {
	auth    authenticator
	handler handler
	metrics *metrics.RPCMetrics
	logg    *logger.Logger
}

func NewServer(auth authenticator, h handler, m *metrics.RPCMetrics, logg *logger.Logger) (*Server, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if h == nil {
		return nil, fmt.Errorf("handler required")
	}
	return &Server{auth: auth, handler: h, metrics: m, logg: logg}, nil
}

// ServeRPC always returns a well formed envelope; infrastructure failures are
// reported as -32400.
func (s *Server) ServeRPC(ctx context.Context, body []byte, authHeader, clientIP string) Response {
	start := time.Now()

	req, perr := ParseRequest(body)
	if perr != nil {
		return s.finish(ctx, req, "invalid", perr, nil, start)
	}
	if s.logg != nil {
		ctx = s.logg.WithRPCMethod(ctx, req.Method)
	}

	method, known := ParseMethod(req.Method)
	methodLabel := "unknown"
	if known {
		methodLabel = method.String()
	}

	account, aerr := s.auth.Authenticate(ctx, authHeader, clientIP)
	if aerr != nil {
		return s.finish(ctx, req, methodLabel, aerr, nil, start)
	}
	if s.logg != nil {
		ctx = s.logg.WithMerchantID(ctx, account.MerchantID)
		ctx = s.logg.WithBusinessID(ctx, account.BusinessID.String())
	}

	if !known {
		return s.finish(ctx, req, methodLabel, NewError(CodeMethodNotFound), nil, start)
	}

	result, herr := s.handler.Handle(ctx, *account, method, req.Params)
	return s.finish(ctx, req, methodLabel, herr, result, start)
}

func (s *Server) finish(ctx context.Context, req Request, method string, rpcErr *Error, result any, start time.Time) Response {
	code := 0
	if rpcErr != nil {
		code = int(rpcErr.Code)
		s.logFailure(ctx, rpcErr)
	}
	s.metrics.Observe(method, code, time.Since(start))
	if rpcErr != nil {
		return Failure(req.ID, rpcErr)
	}
	return Success(req.ID, result)
}

func (s *Server) logFailure(ctx context.Context, rpcErr *Error) {
	if s.logg == nil {
		return
	}
	if rpcErr.Code == CodeInternal {
		cause := rpcErr.Unwrap()
		if cause == nil {
			cause = rpcErr
		}
		logCtx := s.logg.WithFields(ctx, pkgerrors.Dump(cause).Fields())
		s.logg.Error(logCtx, "payme rpc failed", cause)
		return
	}
	logCtx := s.logg.WithField(ctx, "rpc_code", int(rpcErr.Code))
	s.logg.Info(logCtx, "payme rpc rejected")
}
