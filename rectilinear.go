/*
Copyright © 2026 the Gridmap authors.
This file is part of Gridmap.

Gridmap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Gridmap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Gridmap.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridmap

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// A ReferenceableAxis is a one-dimensional coordinate axis whose values
// increase or decrease monotonically. Axis values label cell centers;
// a coordinate belongs to the cell whose center is nearest.
type ReferenceableAxis struct {
	Name string

	values []float64

	// ascending is the axis values sorted in increasing order,
	// shared with values when the axis is already ascending.
	ascending []float64
	reversed  bool

	// wrap indicates a longitude axis, where coordinates
	// 360° apart are equivalent.
	wrap bool
}

// NewAxis creates an axis from monotonic coordinate values. wrap should be
// true for longitude axes so that queries are matched modulo 360°.
func NewAxis(name string, values []float64, wrap bool) *ReferenceableAxis {
	a := &ReferenceableAxis{Name: name, values: values, wrap: wrap}
	if len(values) > 1 && values[0] > values[len(values)-1] {
		a.reversed = true
		a.ascending = make([]float64, len(values))
		for i, v := range values {
			a.ascending[len(values)-1-i] = v
		}
	} else {
		a.ascending = values
	}
	return a
}

// NewRegularAxis creates an evenly spaced axis with the given start value,
// spacing (which may be negative) and number of points.
func NewRegularAxis(name string, start, spacing float64, n int, wrap bool) *ReferenceableAxis {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + spacing*float64(i)
	}
	return NewAxis(name, values, wrap)
}

// Len returns the number of coordinate values on the axis.
func (a *ReferenceableAxis) Len() int { return len(a.values) }

// Value returns the i'th coordinate value.
func (a *ReferenceableAxis) Value(i int) float64 { return a.values[i] }

// Values returns the coordinate values in axis order.
func (a *ReferenceableAxis) Values() []float64 { return a.values }

// NearestIndex returns the index of the coordinate value nearest to v, or
// -1 if v falls outside the axis extent (the cell edges extrapolated half a
// spacing beyond the first and last values). For wrapping axes, v is also
// tried shifted by ±360°.
func (a *ReferenceableAxis) NearestIndex(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	if i := a.nearestIndex(v); i >= 0 {
		return i
	}
	if a.wrap {
		if i := a.nearestIndex(v + 360); i >= 0 {
			return i
		}
		if i := a.nearestIndex(v - 360); i >= 0 {
			return i
		}
	}
	return -1
}

func (a *ReferenceableAxis) nearestIndex(v float64) int {
	n := len(a.ascending)
	if n == 0 {
		return -1
	}
	if n == 1 {
		if v == a.ascending[0] {
			return 0
		}
		return -1
	}
	lo, hi := a.ascending[0], a.ascending[n-1]
	firstStep := a.ascending[1] - a.ascending[0]
	lastStep := a.ascending[n-1] - a.ascending[n-2]
	if v < lo-firstStep/2 || v > hi+lastStep/2 {
		return -1
	}
	k := sort.SearchFloat64s(a.ascending, v)
	// k is the first index with value >= v; the nearest value is either
	// k or k-1.
	if k == n {
		k = n - 1
	} else if k > 0 && v-a.ascending[k-1] < a.ascending[k]-v {
		k--
	}
	if a.reversed {
		return n - 1 - k
	}
	return k
}

// A RectilinearGrid is a grid with separable one-dimensional coordinate
// axes, which need not be evenly spaced.
type RectilinearGrid struct {
	x, y *ReferenceableAxis
	sr   *proj.SR
}

// NewRectilinearGrid creates a grid from x and y axes in the given
// coordinate reference system.
func NewRectilinearGrid(x, y *ReferenceableAxis, sr *proj.SR) *RectilinearGrid {
	return &RectilinearGrid{x: x, y: y, sr: sr}
}

// NewRegularGrid creates an evenly spaced grid covering the bounding box b
// with nx×ny cells in the given coordinate reference system. Cell centers
// are offset half a cell from the box edges. If yDescending is true, the
// first row of the grid is the one with the largest y coordinate, matching
// image raster order.
func NewRegularGrid(b *geom.Bounds, nx, ny int, yDescending bool, sr *proj.SR) (*RectilinearGrid, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("gridmap: regular grid shape %d×%d is invalid", nx, ny)
	}
	dx := (b.Max.X - b.Min.X) / float64(nx)
	dy := (b.Max.Y - b.Min.Y) / float64(ny)
	wrap := isLonLat(sr)
	x := NewRegularAxis("x", b.Min.X+dx/2, dx, nx, wrap)
	var y *ReferenceableAxis
	if yDescending {
		y = NewRegularAxis("y", b.Max.Y-dy/2, -dy, ny, false)
	} else {
		y = NewRegularAxis("y", b.Min.Y+dy/2, dy, ny, false)
	}
	return NewRectilinearGrid(x, y, sr), nil
}

// XAxis returns the grid's x axis.
func (g *RectilinearGrid) XAxis() *ReferenceableAxis { return g.x }

// YAxis returns the grid's y axis.
func (g *RectilinearGrid) YAxis() *ReferenceableAxis { return g.y }

// CRS returns the grid's coordinate reference system.
func (g *RectilinearGrid) CRS() *proj.SR { return g.sr }

// Len returns the number of cells in the grid.
func (g *RectilinearGrid) Len() int { return g.x.Len() * g.y.Len() }

// Extent returns the index bounding box of the grid.
func (g *RectilinearGrid) Extent() GridExtent {
	return GridExtent{MinI: 0, MinJ: 0, MaxI: g.x.Len() - 1, MaxJ: g.y.Len() - 1}
}

// Coordinates returns the center position of cell (i, j).
func (g *RectilinearGrid) Coordinates(i, j int) geom.Point {
	return geom.Point{X: g.x.Value(i), Y: g.y.Value(j)}
}

// Position returns the center of the cell with linear index k,
// in row-major order.
func (g *RectilinearGrid) Position(k int) geom.Point {
	return g.Coordinates(k%g.x.Len(), k/g.x.Len())
}

// NearestCell returns the indices of the cell whose center is nearest to
// (x, y), searching each axis independently.
func (g *RectilinearGrid) NearestCell(x, y float64) (i, j int, ok bool) {
	i = g.x.NearestIndex(x)
	j = g.y.NearestIndex(y)
	if i < 0 || j < 0 {
		return 0, 0, false
	}
	return i, j, true
}

// Bounds returns the outer edges of the grid: the axis extents extrapolated
// half a spacing beyond the first and last cell centers.
func (g *RectilinearGrid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: axisEdgeMin(g.x), Y: axisEdgeMin(g.y)},
		Max: geom.Point{X: axisEdgeMax(g.x), Y: axisEdgeMax(g.y)},
	}
}

func axisEdgeMin(a *ReferenceableAxis) float64 {
	n := len(a.ascending)
	if n < 2 {
		if n == 1 {
			return a.ascending[0]
		}
		return math.NaN()
	}
	return a.ascending[0] - (a.ascending[1]-a.ascending[0])/2
}

func axisEdgeMax(a *ReferenceableAxis) float64 {
	n := len(a.ascending)
	if n < 2 {
		if n == 1 {
			return a.ascending[0]
		}
		return math.NaN()
	}
	return a.ascending[n-1] + (a.ascending[n-1]-a.ascending[n-2])/2
}
