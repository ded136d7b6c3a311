package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/opennoisenet/noisenet/internal/model"
)

// handleUploadSnippet handles POST /api/v1/snippets/{event_id}/upload. The
// body is the raw audio payload; the codec comes from the codec query
// parameter or the Content-Type header. The request body is capped one byte
// above the configured ceiling so an oversized upload maps to a size error
// rather than being buffered in full.
func (s *Server) handleUploadSnippet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	codec := q.Get("codec")
	if codec == "" {
		codec = codecFromContentType(r.Header.Get("Content-Type"))
	}

	var duration float64
	if raw := q.Get("duration"); raw != "" {
		var err error
		duration, err = strconv.ParseFloat(raw, 64)
		if err != nil || duration < 0 {
			writeError(w, http.StatusBadRequest, "invalid duration: "+raw)
			return
		}
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.snippets.MaxBytes()+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			size := r.ContentLength
			if size < 0 {
				size = mbe.Limit
			}
			writeDomainError(w, &model.TooLargeError{SizeBytes: size, MaxBytes: s.snippets.MaxBytes()})
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	snippet, err := s.snippets.Store(r.Context(), r.PathValue("event_id"), data, codec, duration)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// handleGetSnippet handles GET /api/v1/snippets/{id}, streaming the audio
// payload back with its codec's media type.
func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	snippet, data, err := s.snippets.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", mediaType(string(snippet.Codec)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Snippet-Expires-At", snippet.ExpiresAt.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleDeleteSnippet handles DELETE /api/v1/snippets/{id}.
func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := s.snippets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// codecFromContentType maps an upload's media type onto a codec name.
// Unknown types pass through unmapped and fail codec validation downstream.
func codecFromContentType(contentType string) string {
	mt := contentType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mt)) {
	case "audio/opus", "audio/ogg":
		return "opus"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/flac", "audio/x-flac":
		return "flac"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	}
	return contentType
}

// mediaType is the inverse mapping for downloads.
func mediaType(codec string) string {
	switch codec {
	case "opus":
		return "audio/opus"
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
