package server

import (
	"net/http"
	"strconv"

	"github.com/opennoisenet/noisenet/internal/geo"
)

const defaultCellSizeMeters = 250.0

// handleHeatmap handles GET /api/v1/map/heatmap. A bounding box is
// mandatory; cell_size defaults to a city-block scale grid.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	box, err := parseBoundingBox(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if box == nil {
		writeError(w, http.StatusBadRequest, "bounding box is required")
		return
	}

	timeRange, err := parseTimeRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cellSize := defaultCellSizeMeters
	if raw := q.Get("cell_size"); raw != "" {
		cellSize, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cell_size: "+raw)
			return
		}
	}

	cells, err := s.aggregator.Heatmap(r.Context(), *box, timeRange, cellSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cell_size_meters": cellSize,
		"cells":            cells,
	})
}

// handleMapStats handles GET /api/v1/map/stats.
func (s *Server) handleMapStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	timeRange, err := parseTimeRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupBy := q.Get("group_by")
	if groupBy == "" {
		groupBy = geo.GroupByClassification
	}

	groups, err := s.aggregator.Statistics(r.Context(), timeRange, groupBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_by": groupBy,
		"groups":   groups,
	})
}
