package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/biznespilot/payme-merchant/api/middleware"
	"github.com/biznespilot/payme-merchant/api/responses"
	"github.com/biznespilot/payme-merchant/internal/payme"
	"github.com/biznespilot/payme-merchant/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// PaymeRPC serves one JSON-RPC envelope per request.
type PaymeRPC interface {
	ServeRPC(ctx context.Context, body []byte, authHeader, clientIP string) payme.Response
}

// PaymeWebhook is the merchant API endpoint Payme calls. Every outcome,
// including transport problems, is answered with HTTP 200 and a JSON-RPC body.
func PaymeWebhook(rpc PaymeRPC, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				if logg != nil {
					logg.Error(ctx, "payme.panic_recovered", err)
				}
				responses.WriteJSON(w, http.StatusOK, payme.Failure(nil, payme.AsError(err)))
			}
		}()

		if rpc == nil {
			responses.WriteJSON(w, http.StatusOK, payme.Failure(nil, payme.AsError(errors.New("payme server unavailable"))))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "limit_bytes", maxBodyBytes), "payme.body_too_large")
				}
				responses.WriteJSON(w, http.StatusOK, payme.Failure(nil, payme.NewError(payme.CodeInvalidJSONRPC)))
				return
			}
			responses.WriteJSON(w, http.StatusOK, payme.Failure(nil, payme.AsError(fmt.Errorf("read request body: %w", err))))
			return
		}

		resp := rpc.ServeRPC(ctx, body, r.Header.Get("Authorization"), middleware.ClientIP(r))
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}
