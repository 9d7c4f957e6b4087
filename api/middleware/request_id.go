package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/types"
)

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID propagates or mints the X-Request-Id header and attaches it to the
// request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(types.HeaderRequestID)
			if reqID == "" || len(reqID) > maxRequestIDLen {
				reqID = uuid.NewString()
			}

			w.Header().Set(types.HeaderRequestID, reqID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the id set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
