package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/biznespilot/payme-merchant/api/responses"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	pkgerrors "github.com/biznespilot/payme-merchant/pkg/errors"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/types"
)

const (
	envHeader    = "X-Biznespilot-Env"
	readyTimeout = 2 * time.Second
)

// Dependency is a named readiness probe.
type Dependency struct {
	Name   string
	Pinger db.Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, types.HealthReport{Status: "live"})
	}
}

// HealthReady pings every dependency and answers 503 when any fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed error
		for _, dep := range deps {
			if dep.Pinger == nil {
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				checks[dep.Name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.Name+" unavailable")
				}
				continue
			}
			checks[dep.Name] = "up"
		}
		if failed != nil {
			if logg != nil {
				logg.Warn(logg.WithFields(r.Context(), map[string]any{"checks": checks, "error": failed.Error()}), "health.not_ready")
			}
			status := pkgerrors.MetadataFor(pkgerrors.CodeDependency).HTTPStatus
			responses.WriteSuccessStatus(w, status, types.HealthReport{Status: "not_ready", Checks: checks})
			return
		}
		responses.WriteSuccess(w, types.HealthReport{Status: "ready", Checks: checks})
	}
}
