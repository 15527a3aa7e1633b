package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hemisphere-atlas/internal/handlers"
	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/middleware"
)

func New(
	sessionMW *middleware.Session,
	generationLimiter *middleware.RateLimiter,
	pageHandler *handlers.PageHandler,
	widgetHandler *handlers.WidgetHandler,
	wsHandler http.HandlerFunc,
	log logger.ILogger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestLogger(middleware.NewAccessLog(log)))
	r.Use(chimiddleware.Recoverer)

	// Health check
	r.Get("/health", pageHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(sessionMW.Middleware)

		r.Get("/", pageHandler.Index)

		r.Route("/api/v1", func(r chi.Router) {
			// ──── WebSocket ────
			r.Get("/ws", wsHandler)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(30 * time.Second))

				// ──── Pathology Generator ────
				r.Route("/gallery", func(r chi.Router) {
					r.Get("/", widgetHandler.GetGallery)
					r.With(generationLimiter.Middleware).Post("/generate", widgetHandler.GenerateDiseases)
				})

				// ──── Case Study ────
				r.Route("/case", func(r chi.Router) {
					r.Get("/", widgetHandler.GetCase)
					r.With(generationLimiter.Middleware).Post("/new", widgetHandler.NewCase)
					r.Post("/select", widgetHandler.SelectOption)
				})
			})
		})
	})

	return r
}
