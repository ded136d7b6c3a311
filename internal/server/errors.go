package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opennoisenet/noisenet/internal/model"
)

// writeDomainError maps a domain error onto the wire. Validation errors carry
// the full rule list so a device sees everything wrong with its submission in
// one response; rate limiting sets Retry-After.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation  *model.ValidationError
		rateLimited *model.RateLimitedError
		tooLarge    *model.TooLargeError
		badCodec    *model.UnsupportedCodecError
		storage     *model.StorageError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validation.Errors,
		})
	case errors.As(err, &rateLimited):
		seconds := int(rateLimited.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       err.Error(),
			"retry_after": seconds,
		})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrRevoked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &badCodec):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &storage):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request timed out")
	default:
		slog.Error("unhandled error in HTTP handler", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
