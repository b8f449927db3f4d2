// Package httpapi assembles the chi router for the service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"propstage/internal/domain"
	"propstage/internal/http/handlers"
	"propstage/internal/middleware"
)

// NewRouter wires every route behind the shared middleware stack. Ingress
// endpoints (callback, mailbox, websocket) sit outside the bearer-auth
// group: the provider authenticates with the callback secret instead.
func NewRouter(app *handlers.App, users domain.UserRepository, geo middleware.LanguageLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.AllowedOrigins),
		middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/callback", app.Callback)
	r.Post("/v1/mailbox", app.MailboxPush)
	r.Get("/v1/ws", app.WS)
	r.Get("/v1/stats", app.StatsSummary)

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Auth(users),
			middleware.Locale(geo),
		)

		r.Route("/v1/projects", func(r chi.Router) {
			r.Post("/", app.ProjectsCreate)
			r.Get("/", app.ProjectsList)
			r.Get("/{id}", app.ProjectsGet)
			r.Delete("/{id}", app.ProjectsDelete)
			r.Get("/{id}/jobs", app.ProjectsJobs)
		})

		r.Route("/v1/transformations", func(r chi.Router) {
			r.Post("/", app.TransformationsCreate)
			r.Get("/", app.TransformationsList)
			r.Get("/{id}", app.TransformationsGet)
			r.Delete("/{id}", app.TransformationsDelete)
			r.Post("/{id}/regenerate", app.TransformationsRegenerate)
		})

		r.Route("/v1/descriptions", func(r chi.Router) {
			r.Post("/", app.DescriptionsCreate)
			r.Get("/", app.DescriptionsList)
			r.Get("/{id}", app.DescriptionsGet)
			r.Delete("/{id}", app.DescriptionsDelete)
			r.Post("/{id}/regenerate", app.DescriptionsRegenerate)
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", app.CreditsBalance)
			r.Post("/add", app.CreditsAdd)
			r.Post("/upgrade", app.CreditsUpgrade)
		})
	})

	return r
}
