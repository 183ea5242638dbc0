// Package server is the HTTP surface: zone and screen endpoints for
// devices, pairing for setup, health and status for monitoring.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/geocode"
	"github.com/m1ckyb/CommuteCompute-sub001/pair"
	"github.com/m1ckyb/CommuteCompute-sub001/transit"
	"github.com/m1ckyb/CommuteCompute-sub001/weather"
)

// RequestBudget bounds every handler, fallbacks included. Upstream
// fetch deadlines are shorter so the budget covers degraded paths.
const RequestBudget = 5 * time.Second

type Server struct {
	Transit *transit.Manager
	Network *commute.Network
	Weather *weather.Client
	Geocode *geocode.Client
	Pairing *pair.Service

	Clock  clockwork.Clock
	Logger *slog.Logger

	// AdminPassword guards the setup endpoints. Empty disables them
	// outright rather than leaving them open.
	AdminPassword string

	Version string
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestBudget))
	r.Use(metricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"If-None-Match", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Get("/zones", s.handleZones)
		r.Get("/zone/{id}", s.handleZone)
		r.Get("/screen", s.handleScreen)
		r.Get("/livedash", s.handleLivedash)

		r.Post("/pair/{code}", s.handlePairPost)
		r.Get("/pair/{code}", s.handlePairGet)

		r.With(s.requireAdmin).Post("/admin/geocode", s.handleGeocode)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requireAdmin gates setup endpoints behind the one configured
// password. Per-user API keys never come from the environment; this
// password is the only secret the server itself holds.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminPassword == "" || r.Header.Get("X-Admin-Password") != s.AdminPassword {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
