package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/command", s.handleDeviceCommand)
			})
		})

		// Gateway endpoints
		r.Route("/gateways", func(r chi.Router) {
			r.Get("/", s.handleListGateways)

			r.Route("/{sn}", func(r chi.Router) {
				r.Get("/groups", s.handleListGroups)
				r.Get("/scenes", s.handleListScenes)
				r.Post("/scan", s.handleStartScan)
				r.Delete("/scan", s.handleStopScan)
				r.Post("/discover", s.handleDiscover)
			})
		})

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	busConnected := s.bus != nil && s.bus.IsConnected()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"bus_connected": busConnected,
		"devices":       s.registry.Count(),
	})
}
