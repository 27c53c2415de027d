package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/punch-kiosk/internal/web/handlers"
	"github.com/kozaktomas/punch-kiosk/internal/web/static"
)

func (s *Server) setupRoutes() {
	kioskHandler := handlers.NewKioskHandler(s.deps.Kiosk, s.deps.Hub, s.deps.Metrics)
	healthHandler := handlers.NewHealthHandler(s.deps.Kiosk, s.deps.Gallery)

	// Streams, no request timeout
	s.router.Get("/video_feed", kioskHandler.VideoFeed)
	s.router.Get("/status/events", kioskHandler.Events)

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/status", kioskHandler.Status)
		r.Post("/punch_action", kioskHandler.Punch)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", healthHandler.Check)
			if s.deps.Gallery != nil {
				galleryHandler := handlers.NewGalleryHandler(s.deps.Gallery)
				r.Get("/gallery", galleryHandler.Get)
				r.Post("/gallery/reload", galleryHandler.Reload)
			}
		})
	})

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Handle("/*", http.FileServer(static.GetFileSystem()))
}
