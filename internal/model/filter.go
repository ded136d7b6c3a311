package model

import "time"

// BoundingBox is the rectangle (MinLat,MinLng)–(MaxLat,MaxLng) used for
// geospatial queries.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// IsValid reports whether the box is a non-degenerate rectangle with
// coordinates in range.
func (b BoundingBox) IsValid() bool {
	return b.MinLat >= -90 && b.MaxLat <= 90 &&
		b.MinLng >= -180 && b.MaxLng <= 180 &&
		b.MinLat < b.MaxLat && b.MinLng < b.MaxLng
}

// Contains reports whether the point lies inside the box. The minimum
// edges are inclusive and the maximum edges exclusive so adjacent boxes
// tile without double-counting.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat < b.MaxLat && lng >= b.MinLng && lng < b.MaxLng
}

// TimeRange bounds a query to [From, To). A zero From or To leaves that
// side unbounded.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// EventFilter holds criteria for querying noise events.
type EventFilter struct {
	DeviceID       string         `json:"device_id,omitempty"`
	Time           TimeRange      `json:"time,omitempty"`
	Box            *BoundingBox   `json:"box,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	MinLevelDB     *float64       `json:"min_level_db,omitempty"`
	Sort           string         `json:"sort,omitempty"` // e.g. "-recorded_at"; default "recorded_at" ascending
	Limit          int            `json:"limit,omitempty"`
	Offset         int            `json:"offset,omitempty"`
}

// DeviceFilter holds criteria for listing devices.
type DeviceFilter struct {
	Trust  TrustState `json:"trust,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}
