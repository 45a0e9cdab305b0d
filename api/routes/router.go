package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tellowai/admin-api-sub001/api/controllers"
	webhookcontrollers "github.com/tellowai/admin-api-sub001/api/controllers/webhooks"
	"github.com/tellowai/admin-api-sub001/api/middleware"
	pkgAuth "github.com/tellowai/admin-api-sub001/pkg/auth"
	"github.com/tellowai/admin-api-sub001/pkg/config"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

// Services bundles the handlers' collaborators. Readiness lists the
// dependencies pinged by /health/ready; Metrics serves /metrics when set.
type Services struct {
	Submission controllers.GenerationSubmitter
	Status     controllers.GenerationStatusReader
	Webhooks   webhookcontrollers.CallbackHandler
	Readiness  []controllers.Dependency
	Metrics    http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svcs Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, svcs.Readiness...))
	})
	if svcs.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", svcs.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/generations", controllers.GenerationSubmit(svcs.Submission, logg))
		r.Get("/generations/{generationId}", controllers.GenerationStatus(svcs.Status, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, pkgAuth.RoleAdmin))
		r.Get("/generations/{generationId}/events", controllers.AdminGenerationEvents(svcs.Status, logg))
	})

	// Provider callbacks carry their own capability token and skip auth.
	r.Post("/{domain}/{token}/webhook", webhookcontrollers.GenerationWebhook(svcs.Webhooks, logg))

	return r
}
