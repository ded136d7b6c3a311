// Package geo computes heatmap and statistics views over the event store.
// Everything here is read-only with respect to persistent state.
package geo

import (
	"fmt"
	"math"

	"github.com/opennoisenet/noisenet/internal/model"
)

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// Grid partitions a bounding box into uniform cells of a requested size
// using a local equirectangular projection: latitude degrees are treated as
// constant-length and longitude degrees are scaled by the cosine of the
// box's mid-latitude. The approximation is consistent within one grid, so
// cells tile the box without gaps or overlaps.
type Grid struct {
	box      model.BoundingBox
	latStep  float64 // degrees of latitude per cell
	lngStep  float64 // degrees of longitude per cell
	cols     int
	rows     int
	cellSize float64
}

// NewGrid builds a grid over box with cells of cellSizeMeters on a side.
func NewGrid(box model.BoundingBox, cellSizeMeters float64) (*Grid, error) {
	if !box.IsValid() {
		return nil, fmt.Errorf("invalid bounding box (%g,%g)-(%g,%g)", box.MinLat, box.MinLng, box.MaxLat, box.MaxLng)
	}
	if math.IsNaN(cellSizeMeters) || math.IsInf(cellSizeMeters, 0) || cellSizeMeters <= 0 {
		return nil, fmt.Errorf("cell size must be a positive finite number, got %g", cellSizeMeters)
	}

	midLat := (box.MinLat + box.MaxLat) / 2
	lngScale := math.Cos(midLat * math.Pi / 180)
	if lngScale < 1e-6 {
		return nil, fmt.Errorf("bounding box too close to a pole for a planar grid")
	}

	latStep := cellSizeMeters / metersPerDegreeLat
	lngStep := cellSizeMeters / (metersPerDegreeLat * lngScale)

	// A cell larger than the box still yields one row/column.
	cols := int(math.Ceil((box.MaxLng - box.MinLng) / lngStep))
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Ceil((box.MaxLat - box.MinLat) / latStep))
	if rows < 1 {
		rows = 1
	}

	return &Grid{
		box:      box,
		latStep:  latStep,
		lngStep:  lngStep,
		cols:     cols,
		rows:     rows,
		cellSize: cellSizeMeters,
	}, nil
}

// Cells returns the number of cells in the grid.
func (g *Grid) Cells() int {
	return g.cols * g.rows
}

// CellIndex maps a point to its cell. The second return is false for points
// outside the bounding box. Every in-box point lands in exactly one cell.
func (g *Grid) CellIndex(lat, lng float64) (int, bool) {
	if !g.box.Contains(lat, lng) {
		return 0, false
	}
	row := int((lat - g.box.MinLat) / g.latStep)
	if row >= g.rows {
		row = g.rows - 1
	}
	col := int((lng - g.box.MinLng) / g.lngStep)
	if col >= g.cols {
		col = g.cols - 1
	}
	return row*g.cols + col, true
}

// CellCenter returns the center coordinates of the given cell.
func (g *Grid) CellCenter(index int) (lat, lng float64) {
	row := index / g.cols
	col := index % g.cols
	lat = g.box.MinLat + (float64(row)+0.5)*g.latStep
	lng = g.box.MinLng + (float64(col)+0.5)*g.lngStep
	return lat, lng
}
