package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biznespilot/payme-merchant/api/controllers"
	webhookcontrollers "github.com/biznespilot/payme-merchant/api/controllers/webhooks"
	"github.com/biznespilot/payme-merchant/api/middleware"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/logger"
)

// RouterParams are the collaborators NewRouter mounts.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger
	Payme  webhookcontrollers.PaymeRPC
	// Ready lists the dependencies /health/ready probes.
	Ready []controllers.Dependency
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Ready...))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payme", webhookcontrollers.PaymeWebhook(params.Payme, cfg.Payme.MaxRequestBodyBytes, logg))
	})

	return r
}
