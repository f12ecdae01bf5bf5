package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/middleware"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
)

// Routes wires every endpoint onto a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(log.Middleware(h.logger))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, apperr.New(apperr.NotFound, "route not found"))
	})

	r.Get("/healthz", h.Health)

	// Public
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Auth.SignUp)
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
		r.With(h.authn.Require).Post("/logout", h.Auth.Logout)
	})

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(h.authn.Require)

		r.Get("/me", h.Auth.Me)

		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.Movements.List)
			r.With(middleware.RequirePermission(models.PermCreateMovement)).Post("/", h.Movements.Create)
			r.Get("/balance", h.Movements.Balance)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequirePermission(models.PermManageUsers)).Get("/", h.Users.List)
			r.With(middleware.RequirePermission(models.PermManageUsers)).Get("/{id}", h.Users.Get)
			r.Put("/{id}", h.Users.Update)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequirePermission(models.PermViewReports))
			r.Get("/summary", h.Reports.Summary)
			r.Get("/export", h.Reports.Export)
		})
	})

	return r
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", log.FieldError, err)
		utils.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
