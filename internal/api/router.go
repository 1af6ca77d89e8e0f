package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	QueryIP       http.HandlerFunc

	UploadLog        http.HandlerFunc
	UploadStatistics http.HandlerFunc
	UserLog          http.HandlerFunc

	LogList      http.HandlerFunc
	LogContent   http.HandlerFunc
	LogComplete  http.HandlerFunc
	LogRemove    http.HandlerFunc
	ClearLog     http.HandlerFunc
	LogPage      http.HandlerFunc
	StatsPage    http.HandlerFunc
	IndexHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/query_ip/json", orNotImplemented(deps.QueryIP))
	r.Post("/api/user_log", orNotImplemented(deps.UserLog))

	// Public client submissions
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/upload_log", orNotImplemented(deps.UploadLog))
		r.Post("/api/upload_statistics_cli_cfg", orNotImplemented(deps.UploadStatistics))
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Post("/api/log_list", orNotImplemented(deps.LogList))
		r.Post("/api/log_content", orNotImplemented(deps.LogContent))
		r.Post("/api/log_complete", orNotImplemented(deps.LogComplete))

		r.Get("/log_content/{log_type}", orNotImplemented(deps.LogPage))
		r.Get("/statistics_users/{cli_type}", orNotImplemented(deps.StatsPage))
		r.Get("/*", orNotImplemented(deps.IndexHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAdmin)

			r.Post("/api/log_remove", orNotImplemented(deps.LogRemove))
			r.Post("/api/clear_log", orNotImplemented(deps.ClearLog))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
