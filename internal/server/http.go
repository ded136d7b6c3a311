package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/devices/register", s.handleRegisterDevice)
	mux.HandleFunc("GET /api/v1/devices", s.handleListDevices)
	mux.HandleFunc("GET /api/v1/devices/{id}", s.handleGetDevice)
	mux.HandleFunc("POST /api/v1/devices/{id}/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /api/v1/devices/{id}/trust", s.handleSetTrust)

	mux.HandleFunc("POST /api/v1/events", s.handleSubmitEvent)
	mux.HandleFunc("GET /api/v1/events", s.handleListEvents)
	mux.HandleFunc("GET /api/v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("DELETE /api/v1/events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("GET /api/v1/map/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/v1/map/stats", s.handleMapStats)

	mux.HandleFunc("POST /api/v1/snippets/{event_id}/upload", s.handleUploadSnippet)
	mux.HandleFunc("GET /api/v1/snippets/{id}", s.handleGetSnippet)
	mux.HandleFunc("DELETE /api/v1/snippets/{id}", s.handleDeleteSnippet)

	mux.HandleFunc("GET /api/v1/admin/stats", s.handleAdminStats)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux)))
}
