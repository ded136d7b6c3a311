package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/ingest"
	"github.com/opennoisenet/noisenet/internal/model"
)

// handleSubmitEvent handles POST /api/v1/events, the measurement ingestion
// path. Rate limiting, trust checks, and validation all happen inside the
// ingest service; this handler only decodes and reports.
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var raw ingest.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	event, err := s.ingest.Submit(r.Context(), raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// handleListEvents handles GET /api/v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.EventFilter{
		DeviceID:       q.Get("device_id"),
		Classification: model.Classification(q.Get("classification")),
		Sort:           q.Get("sort"),
	}
	if filter.Classification != "" && !filter.Classification.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid classification: "+string(filter.Classification))
		return
	}

	var err error
	if filter.Time, err = parseTimeRange(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Box, err = parseBoundingBox(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.MinLevelDB, err = parseFloatParam(q, "min_level_db"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, filter.Offset, err = parsePagination(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, total, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}

// handleGetEvent handles GET /api/v1/events/{id}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleDeleteEvent handles DELETE /api/v1/events/{id}. An attached snippet
// is removed first, payload included, so deleting an event never strands a
// blob in object storage. The steps are not atomic: a failure after the
// snippet delete leaves the event behind without its audio, and repeating
// the DELETE finishes the job.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if event.SnippetID != nil {
		if err := s.snippets.Delete(r.Context(), *event.SnippetID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := s.store.DeleteEvent(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.publisher.Publish(r.Context(), events.TopicEventDeleted, events.EventDeleted{EventID: id}); err != nil {
		slog.Warn("failed to publish event", "topic", events.TopicEventDeleted, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
