package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/biznespilot/payme-merchant/api/responses"
	pkgerrors "github.com/biznespilot/payme-merchant/pkg/errors"
	"github.com/biznespilot/payme-merchant/pkg/logger"
)

// startedWriter remembers whether any part of the response went out.
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (s *startedWriter) WriteHeader(code int) {
	s.started = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *startedWriter) Write(b []byte) (int, error) {
	s.started = true
	return s.ResponseWriter.Write(b)
}

// Recoverer turns a handler panic into a 500 error envelope. When the handler
// already started the response only the log entry is written.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &startedWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":            fmt.Sprint(rec),
						"method":           r.Method,
						"path":             r.URL.Path,
						"response_started": sw.started,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				if !sw.started {
					responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
