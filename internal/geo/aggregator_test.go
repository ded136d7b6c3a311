package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/model"
	"github.com/opennoisenet/noisenet/internal/store/storetest"
)

func newAggregator(s *storetest.MemStore) *Aggregator {
	return New(s, metrics.New(prometheus.NewRegistry()))
}

func seedEvent(t *testing.T, s *storetest.MemStore, id string, lat, lng, level float64, recordedAt time.Time, class model.Classification) {
	t.Helper()
	err := s.AppendEvent(context.Background(), &model.NoiseEvent{
		ID:             id,
		DeviceID:       "dev-abc123",
		RecordedAt:     recordedAt,
		LevelDB:        level,
		Classification: class,
		Latitude:       lat,
		Longitude:      lng,
		CreatedAt:      recordedAt,
	})
	if err != nil {
		t.Fatalf("seed event %s: %v", id, err)
	}
}

func TestHeatmapSingleCell(t *testing.T) {
	s := storetest.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Three measurements at the same spot fall into one cell.
	seedEvent(t, s, "evt-1", 52.52, 13.40, 72.3, now, model.ClassTraffic)
	seedEvent(t, s, "evt-2", 52.52, 13.40, 80.3, now.Add(time.Minute), model.ClassTraffic)
	seedEvent(t, s, "evt-3", 52.52, 13.40, 64.3, now.Add(2*time.Minute), model.ClassTraffic)

	cells, err := newAggregator(s).Heatmap(context.Background(), berlinBox, model.TimeRange{}, 250)
	if err != nil {
		t.Fatalf("Heatmap() error = %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1", len(cells))
	}

	cell := cells[0]
	if cell.Count != 3 {
		t.Errorf("Count = %d, want 3", cell.Count)
	}
	if diff := cell.MeanLevel - 72.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MeanLevel = %g, want 72.3", cell.MeanLevel)
	}
	if cell.MaxLevel != 80.3 {
		t.Errorf("MaxLevel = %g, want 80.3", cell.MaxLevel)
	}
	if !berlinBox.Contains(cell.CenterLat, cell.CenterLng) {
		t.Errorf("cell center (%g, %g) outside query box", cell.CenterLat, cell.CenterLng)
	}
}

func TestHeatmapCountConservation(t *testing.T) {
	s := storetest.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Spread events across the box; every in-box event must be counted
	// exactly once regardless of cell boundaries.
	const n = 200
	for i := 0; i < n; i++ {
		lat := berlinBox.MinLat + float64(i)*(berlinBox.MaxLat-berlinBox.MinLat)/n
		lng := berlinBox.MinLng + float64(i*7%n)*(berlinBox.MaxLng-berlinBox.MinLng)/n
		seedEvent(t, s, fmt.Sprintf("evt-%03d", i), lat, lng, 60+float64(i%30), now, model.ClassTraffic)
	}
	// Plus two outside the box that must not appear.
	seedEvent(t, s, "evt-out-1", 48.1, 11.5, 70, now, model.ClassTraffic)
	seedEvent(t, s, "evt-out-2", 52.52, 14.9, 70, now, model.ClassTraffic)

	cells, err := newAggregator(s).Heatmap(context.Background(), berlinBox, model.TimeRange{}, 1000)
	if err != nil {
		t.Fatalf("Heatmap() error = %v", err)
	}

	var total int64
	for _, c := range cells {
		total += c.Count
	}
	if total != n {
		t.Errorf("total count across cells = %d, want %d", total, n)
	}
}

func TestHeatmapTimeRange(t *testing.T) {
	s := storetest.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	seedEvent(t, s, "evt-early", 52.52, 13.40, 70, now.Add(-2*time.Hour), model.ClassTraffic)
	seedEvent(t, s, "evt-in", 52.52, 13.40, 75, now, model.ClassTraffic)
	seedEvent(t, s, "evt-late", 52.52, 13.40, 80, now.Add(2*time.Hour), model.ClassTraffic)

	tr := model.TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	cells, err := newAggregator(s).Heatmap(context.Background(), berlinBox, tr, 250)
	if err != nil {
		t.Fatalf("Heatmap() error = %v", err)
	}
	if len(cells) != 1 || cells[0].Count != 1 {
		t.Fatalf("cells = %+v, want one cell with count 1", cells)
	}
	if cells[0].MaxLevel != 75 {
		t.Errorf("MaxLevel = %g, want the in-range event's 75", cells[0].MaxLevel)
	}
}

func TestHeatmapInvalidGrid(t *testing.T) {
	s := storetest.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	seedEvent(t, s, "evt-1", 52.52, 13.40, 70, now, model.ClassTraffic)

	for _, cellSize := range []float64{-5, 0, math.Inf(1), math.NaN()} {
		_, err := newAggregator(s).Heatmap(context.Background(), berlinBox, model.TimeRange{}, cellSize)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Heatmap(cellSize=%g) error = %v, want *ValidationError", cellSize, err)
		}
	}
}

func TestStatisticsByClassification(t *testing.T) {
	s := storetest.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	seedEvent(t, s, "evt-1", 52.52, 13.40, 70, now, model.ClassTraffic)
	seedEvent(t, s, "evt-2", 52.52, 13.40, 80, now, model.ClassTraffic)
	seedEvent(t, s, "evt-3", 52.52, 13.40, 60, now, model.ClassMusic)
	seedEvent(t, s, "evt-4", 52.52, 13.40, 55, now, "") // unclassified

	groups, err := newAggregator(s).Statistics(context.Background(), model.TimeRange{}, GroupByClassification)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	byKey := make(map[string]GroupAggregate)
	for _, g := range groups {
		byKey[g.Key] = g
	}

	if g := byKey["traffic"]; g.Count != 2 || g.MeanLevel != 75 || g.MaxLevel != 80 {
		t.Errorf("traffic group = %+v", g)
	}
	if g := byKey["music"]; g.Count != 1 {
		t.Errorf("music group = %+v", g)
	}
	// Unclassified events land in the unknown bucket.
	if g := byKey["unknown"]; g.Count != 1 {
		t.Errorf("unknown group = %+v", g)
	}
}

func TestStatisticsByHour(t *testing.T) {
	s := storetest.New()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	seedEvent(t, s, "evt-1", 52.52, 13.40, 70, day.Add(8*time.Hour), model.ClassTraffic)
	seedEvent(t, s, "evt-2", 52.52, 13.40, 72, day.Add(8*time.Hour+30*time.Minute), model.ClassTraffic)
	seedEvent(t, s, "evt-3", 52.52, 13.40, 50, day.Add(23*time.Hour), model.ClassNature)

	groups, err := newAggregator(s).Statistics(context.Background(), model.TimeRange{}, GroupByHour)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// Sorted by key: "08" before "23".
	if groups[0].Key != "08" || groups[0].Count != 2 {
		t.Errorf("first group = %+v, want hour 08 with count 2", groups[0])
	}
	if groups[1].Key != "23" || groups[1].Count != 1 {
		t.Errorf("second group = %+v, want hour 23 with count 1", groups[1])
	}
}

func TestStatisticsUnknownGroupBy(t *testing.T) {
	_, err := newAggregator(storetest.New()).Statistics(context.Background(), model.TimeRange{}, "color")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Statistics() error = %v, want *ValidationError", err)
	}
}
