package server

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/opennoisenet/noisenet/internal/model"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// parsePagination reads limit and offset query parameters, applying the
// default page size and capping at the maximum.
func parsePagination(q url.Values) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit: %q", raw)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %q", raw)
		}
	}
	return limit, offset, nil
}

// parseTimeRange reads optional from/to query parameters as RFC 3339.
func parseTimeRange(q url.Values) (model.TimeRange, error) {
	var tr model.TimeRange
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return tr, fmt.Errorf("invalid from timestamp: %q", raw)
		}
		tr.From = t.UTC()
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return tr, fmt.Errorf("invalid to timestamp: %q", raw)
		}
		tr.To = t.UTC()
	}
	if !tr.From.IsZero() && !tr.To.IsZero() && !tr.From.Before(tr.To) {
		return tr, fmt.Errorf("from must be before to")
	}
	return tr, nil
}

// parseBoundingBox reads min_lat/min_lng/max_lat/max_lng query parameters.
// All four must be present together; none present returns (nil, nil).
func parseBoundingBox(q url.Values) (*model.BoundingBox, error) {
	keys := []string{"min_lat", "min_lng", "max_lat", "max_lng"}
	present := 0
	vals := make([]float64, len(keys))
	for i, key := range keys {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", key, raw)
		}
		vals[i] = v
		present++
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(keys) {
		return nil, fmt.Errorf("bounding box requires all of min_lat, min_lng, max_lat, max_lng")
	}
	box := &model.BoundingBox{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	if !box.IsValid() {
		return nil, fmt.Errorf("bounding box is degenerate or out of range")
	}
	return box, nil
}

// parseFloatParam reads a single optional float query parameter.
func parseFloatParam(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return &v, nil
}
