package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	appH *AppHandler,
	deployH *DeployHandler,
	versionH *VersionHandler,
	logH *LogHandler,
	webhookH *WebhookHandler,
	healthH *HealthHandler,
	apiToken string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", healthH.Platform)

	// webhook 回调由签名鉴权，不走 API token
	r.Post("/hooks/{app}", webhookH.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(apiToken))

		r.Route("/apps", func(r chi.Router) {
			r.Post("/", deployH.Deploy)
			r.Get("/", appH.List)
			r.Route("/{app}", func(r chi.Router) {
				r.Get("/", appH.Get)
				r.Delete("/", appH.Delete)
				r.Post("/start", appH.Start)
				r.Post("/stop", appH.Stop)
				r.Post("/restart", appH.Restart)
				r.Get("/env", appH.GetEnv)
				r.Put("/env", appH.SetEnv)
				r.Put("/autorestart", appH.SetAutoRestart)
				r.Get("/logs", logH.Recent)
				r.Get("/logs/stream", logH.Stream)
				r.Get("/versions", versionH.List)
				r.Post("/versions/{version}/rollback", versionH.Rollback)
				r.Put("/webhook", webhookH.SetSecret)
				r.Get("/health", healthH.AppHealth)
				r.Get("/events", appH.ListEvents)
			})
		})
	})

	return r
}
