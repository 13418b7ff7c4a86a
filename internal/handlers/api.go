// Package handlers exposes the tournament over HTTP: admin login, the event
// commands, read-only views, the push socket and metrics.
package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tourney/internal/auth"
	"github.com/jason-s-yu/tourney/internal/middleware"
	"github.com/jason-s-yu/tourney/internal/tournament"
)

// Admin identifies the single operator allowed to log in.
type Admin struct {
	ID           string
	PasswordHash string
}

// API serves the tournament store.
type API struct {
	store   *tournament.Store
	signer  *auth.Signer
	admin   Admin
	logger  *logrus.Logger
	metrics http.Handler

	origins     []string
	originHosts []string
	limiter     *middleware.IPRateLimiter
}

// Options configures the router around the API.
type Options struct {
	AllowedOrigins []string
	// Limiter throttles requests per client IP; nil disables limiting.
	Limiter *middleware.IPRateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewAPI(store *tournament.Store, signer *auth.Signer, admin Admin, logger *logrus.Logger, opts Options) *API {
	a := &API{
		store:   store,
		signer:  signer,
		admin:   admin,
		logger:  logger,
		metrics: opts.Metrics,
		origins: opts.AllowedOrigins,
		limiter: opts.Limiter,
	}
	for _, o := range opts.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			a.originHosts = append(a.originHosts, u.Host)
		} else {
			a.originHosts = append(a.originHosts, o)
		}
	}
	return a
}

// Router builds the chi router with every route and middleware.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(a.logger))
	r.Use(chimw.Heartbeat("/ping"))
	if len(a.origins) > 0 {
		r.Use(middleware.CORSMiddleware(a.origins))
	}
	if a.limiter != nil {
		r.Use(middleware.RateLimitMiddleware(a.limiter))
	}

	if a.metrics != nil {
		r.Handle("/metrics", a.metrics)
	}
	r.Get("/ws", a.pushSocket)
	r.Post("/admin/login", a.login)

	r.Get("/event", a.getEvent)
	r.Get("/standings", a.getStandings)
	r.Get("/seeding", a.getSeeding)
	r.Get("/matches", a.getMatches)
	r.Get("/matches/{id}", a.getMatch)
	r.Get("/players/{id}/match", a.getCurrentMatch)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(a.signer))

		r.Post("/players/join", a.join)
		r.Post("/players/withdraw", a.withdraw)
		r.Post("/players/homes", a.updateHomes)

		r.Post("/matches/{id}/home", a.chooseHome)
		r.Post("/matches/{id}/report", a.report)
		r.Post("/matches/{id}/reject", a.reject)
		r.Post("/matches/{id}/confirm", a.confirm)
		r.Post("/matches/{id}/comment", a.comment)

		r.Post("/finals/respond", a.respond)
		r.Post("/finals/opponent", a.selectOpponent)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/admin/tokens", a.mintToken)

			r.Post("/event/swiss", a.openSwiss)
			r.Post("/event/finals", a.openFinals)
			r.Post("/event/end", a.endEvent)
			r.Post("/event/backup", a.backup)

			r.Post("/rounds/next", a.nextRound)
			r.Post("/rounds/undo", a.undoRound)

			r.Post("/matches/{id}/force-home", a.forceHome)
			r.Post("/matches/{id}/fix", a.fixScore)
			r.Post("/matches/{id}/cancel", a.cancelMatch)

			r.Post("/finals/invite", a.invite)
			r.Post("/finals/start", a.startFinals)
		})
	})
	return r
}
