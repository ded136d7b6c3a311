// Package server is the HTTP transport for the telemetry core. It decodes
// requests, delegates to the domain services, and is the only place domain
// errors are turned into wire-level status codes.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/geo"
	"github.com/opennoisenet/noisenet/internal/ingest"
	"github.com/opennoisenet/noisenet/internal/registry"
	"github.com/opennoisenet/noisenet/internal/snippet"
	"github.com/opennoisenet/noisenet/internal/store"
)

// Server holds the domain services behind the HTTP surface.
type Server struct {
	store      store.Store
	registry   *registry.Service
	ingest     *ingest.Service
	aggregator *geo.Aggregator
	snippets   *snippet.Manager
	publisher  events.Publisher
	gatherer   prometheus.Gatherer
}

// New returns a server delegating to the given services. gatherer backs the
// /metrics endpoint.
func New(
	s store.Store,
	reg *registry.Service,
	ing *ingest.Service,
	agg *geo.Aggregator,
	snippets *snippet.Manager,
	publisher events.Publisher,
	gatherer prometheus.Gatherer,
) *Server {
	return &Server{
		store:      s,
		registry:   reg,
		ingest:     ing,
		aggregator: agg,
		snippets:   snippets,
		publisher:  publisher,
		gatherer:   gatherer,
	}
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
