package geo

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store"
)

// CellAggregate is the heatmap value for one grid cell. Cells with no
// events are omitted from the output entirely.
type CellAggregate struct {
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Count     int64   `json:"count"`
	MeanLevel float64 `json:"mean_level"`
	MaxLevel  float64 `json:"max_level"`
}

// GroupAggregate is one row of a statistics query.
type GroupAggregate struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	MeanLevel float64 `json:"mean_level"`
	MaxLevel  float64 `json:"max_level"`
}

// GroupBy values accepted by Statistics.
const (
	GroupByClassification = "classification"
	GroupByDevice         = "device"
	GroupByDay            = "day"
	GroupByHour           = "hour"
)

// Aggregator answers heatmap and statistics queries by streaming events out
// of the store in a single pass. It never writes.
type Aggregator struct {
	store   store.Store
	metrics *metrics.Metrics
}

// New returns an aggregator reading from s.
func New(s store.Store, m *metrics.Metrics) *Aggregator {
	return &Aggregator{store: s, metrics: m}
}

type accum struct {
	count int64
	sum   float64
	max   float64
}

func (a *accum) add(level float64) {
	if a.count == 0 || level > a.max {
		a.max = level
	}
	a.count++
	a.sum += level
}

// Heatmap partitions box into cells of cellSizeMeters, accumulates
// count/mean/max of the measured level per cell over events in the time
// range, and returns the non-empty cells ordered by cell position.
func (a *Aggregator) Heatmap(ctx context.Context, box model.BoundingBox, timeRange model.TimeRange, cellSizeMeters float64) ([]CellAggregate, error) {
	timer := prometheus.NewTimer(a.metrics.HeatmapDuration)
	defer timer.ObserveDuration()

	grid, err := NewGrid(box, cellSizeMeters)
	if err != nil {
		var ve model.ValidationError
		ve.Add("grid", err.Error())
		return nil, &ve
	}

	cells := make(map[int]*accum)
	filter := model.EventFilter{Box: &box, Time: timeRange}
	err = a.store.ForEachEvent(ctx, filter, func(e *model.NoiseEvent) error {
		idx, ok := grid.CellIndex(e.Latitude, e.Longitude)
		if !ok {
			// The store's box predicate matches the grid's, so this only
			// trips if the two ever drift apart.
			return nil
		}
		c, found := cells[idx]
		if !found {
			c = &accum{}
			cells[idx] = c
		}
		c.add(e.LevelDB)
		return nil
	})
	if err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(cells))
	for idx := range cells {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]CellAggregate, 0, len(indexes))
	for _, idx := range indexes {
		c := cells[idx]
		lat, lng := grid.CellCenter(idx)
		out = append(out, CellAggregate{
			CenterLat: lat,
			CenterLng: lng,
			Count:     c.count,
			MeanLevel: c.sum / float64(c.count),
			MaxLevel:  c.max,
		})
	}
	return out, nil
}

// Statistics aggregates events in the time range grouped by classification,
// device, day, or hour of day.
func (a *Aggregator) Statistics(ctx context.Context, timeRange model.TimeRange, groupBy string) ([]GroupAggregate, error) {
	var keyFn func(*model.NoiseEvent) string
	switch groupBy {
	case GroupByClassification:
		keyFn = func(e *model.NoiseEvent) string {
			if e.Classification == "" {
				return string(model.ClassUnknown)
			}
			return string(e.Classification)
		}
	case GroupByDevice:
		keyFn = func(e *model.NoiseEvent) string { return e.DeviceID }
	case GroupByDay:
		keyFn = func(e *model.NoiseEvent) string { return e.RecordedAt.UTC().Format("2006-01-02") }
	case GroupByHour:
		keyFn = func(e *model.NoiseEvent) string { return e.RecordedAt.UTC().Format("15") }
	default:
		var ve model.ValidationError
		ve.Add("group_by", fmt.Sprintf("must be one of classification, device, day, hour; got %q", groupBy))
		return nil, &ve
	}

	groups := make(map[string]*accum)
	err := a.store.ForEachEvent(ctx, model.EventFilter{Time: timeRange}, func(e *model.NoiseEvent) error {
		key := keyFn(e)
		g, found := groups[key]
		if !found {
			g = &accum{}
			groups[key] = g
		}
		g.add(e.LevelDB)
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]GroupAggregate, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		out = append(out, GroupAggregate{
			Key:       key,
			Count:     g.count,
			MeanLevel: g.sum / float64(g.count),
			MaxLevel:  g.max,
		})
	}
	return out, nil
}
