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
	"sync"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/gridmap/internal/hash"
)

// A CurvilinearGrid is a structured mesh of quadrilateral cells whose
// corner positions are given explicitly in longitude-latitude coordinates,
// so cell edges need not follow coordinate axes. Cells with any
// non-finite corner are masked: they are excluded from spatial indexing
// and are never reported as containing or nearest to a query point.
//
// Cells are stored in a flat arena and refer to their neighbors by index,
// so the grid is safe to share between goroutines once constructed.
type CurvilinearGrid struct {
	ni, nj int // number of cells along each axis

	// Corner positions, (nj+1)×(ni+1) values in row-major order.
	cornerLons, cornerLats []float64

	cells []Cell

	areaOnce sync.Once
	meanArea float64

	keyOnce sync.Once
	key     string
}

// A Cell is a single quadrilateral of a CurvilinearGrid. A masked cell has
// a NaN center and no boundary polygon.
type Cell struct {
	I, J int

	// Centre is the centroid of the cell's corners. Its longitude is
	// normalized to [-180°, 180°).
	Centre geom.Point

	bounds   geom.Bounds
	boundary geom.Polygon
}

// NewCurvilinearGrid creates a grid of ni×nj cells from corner coordinate
// arrays holding (ni+1)×(nj+1) values each in row-major order: the corners
// of cell (i, j) are the array entries (i, j), (i+1, j), (i, j+1) and
// (i+1, j+1).
func NewCurvilinearGrid(cornerLons, cornerLats []float64, ni, nj int) (*CurvilinearGrid, error) {
	if ni < 1 || nj < 1 {
		return nil, fmt.Errorf("gridmap: curvilinear grid shape %d×%d is invalid", ni, nj)
	}
	n := (ni + 1) * (nj + 1)
	if len(cornerLons) != n || len(cornerLats) != n {
		return nil, fmt.Errorf("gridmap: curvilinear grid shape %d×%d requires %d corners; have %d longitudes and %d latitudes",
			ni, nj, n, len(cornerLons), len(cornerLats))
	}
	g := &CurvilinearGrid{
		ni:         ni,
		nj:         nj,
		cornerLons: cornerLons,
		cornerLats: cornerLats,
	}
	g.buildCells()
	return g, nil
}

// NewCurvilinearGridFromCenters creates a grid of ni×nj cells from the
// cell-center coordinate arrays commonly stored in data files (ni×nj values
// each, row-major). Cell corners are derived by averaging the four
// surrounding centers; centers are mirrored across the grid edges so that
// boundary cells keep their full size.
func NewCurvilinearGridFromCenters(lons, lats []float64, ni, nj int) (*CurvilinearGrid, error) {
	if ni < 1 || nj < 1 {
		return nil, fmt.Errorf("gridmap: curvilinear grid shape %d×%d is invalid", ni, nj)
	}
	if len(lons) != ni*nj || len(lats) != ni*nj {
		return nil, fmt.Errorf("gridmap: curvilinear grid shape %d×%d requires %d centers; have %d longitudes and %d latitudes",
			ni, nj, ni*nj, len(lons), len(lats))
	}
	cornerLons, cornerLats := cornersFromCenters(lons, lats, ni, nj)
	return NewCurvilinearGrid(cornerLons, cornerLats, ni, nj)
}

// cornersFromCenters derives (ni+1)×(nj+1) corner positions from ni×nj
// center positions. Interior corners average their four surrounding
// centers; edge corners use centers mirrored across the grid boundary.
func cornersFromCenters(lons, lats []float64, ni, nj int) (cornerLons, cornerLats []float64) {
	// ext holds the centers padded by one mirrored row and column on
	// each side, (nj+2)×(ni+2) values.
	extLon := make([]float64, (ni+2)*(nj+2))
	extLat := make([]float64, (ni+2)*(nj+2))
	ext := func(i, j int) int { return (j+1)*(ni+2) + i + 1 }
	at := func(i, j int) int { return j*ni + i }

	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			extLon[ext(i, j)] = lons[at(i, j)]
			extLat[ext(i, j)] = lats[at(i, j)]
		}
	}
	mirror := func(dst, a, b int) {
		extLon[dst] = 2*extLon[a] - nearestLongitude(extLon[a], extLon[b])
		extLat[dst] = 2*extLat[a] - extLat[b]
	}
	clamp := func(v, max int) int {
		if v > max {
			return max
		}
		return v
	}
	for i := 0; i < ni; i++ {
		mirror(ext(i, -1), ext(i, 0), ext(i, clamp(1, nj-1)))
		mirror(ext(i, nj), ext(i, nj-1), ext(i, nj-1-clamp(1, nj-1)))
	}
	for j := -1; j <= nj; j++ {
		mirror(ext(-1, j), ext(0, j), ext(clamp(1, ni-1), j))
		mirror(ext(ni, j), ext(ni-1, j), ext(ni-1-clamp(1, ni-1), j))
	}

	cornerLons = make([]float64, (ni+1)*(nj+1))
	cornerLats = make([]float64, (ni+1)*(nj+1))
	for cj := 0; cj <= nj; cj++ {
		for ci := 0; ci <= ni; ci++ {
			idxs := []int{ext(ci-1, cj-1), ext(ci, cj-1), ext(ci-1, cj), ext(ci, cj)}
			k := cj*(ni+1) + ci
			cornerLons[k] = meanLongitude(extLon, idxs)
			cornerLats[k] = meanFinite(extLat, idxs)
		}
	}
	return cornerLons, cornerLats
}

// meanFinite averages the finite values at the given indices,
// returning NaN if there are none.
func meanFinite(vals []float64, idxs []int) float64 {
	var sum float64
	var n int
	for _, k := range idxs {
		if v := vals[k]; !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// meanLongitude averages the finite longitudes at the given indices,
// first bringing each to the equivalent value nearest the first finite one
// so that averages near the anti-meridian do not collapse to zero.
func meanLongitude(lons []float64, idxs []int) float64 {
	ref := math.NaN()
	var sum float64
	var n int
	for _, k := range idxs {
		v := lons[k]
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(ref) {
			ref = v
		}
		sum += nearestLongitude(ref, v)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// nearestLongitude returns the representation of lon that is within 180°
// of ref.
func nearestLongitude(ref, lon float64) float64 {
	for lon-ref > 180 {
		lon -= 360
	}
	for lon-ref < -180 {
		lon += 360
	}
	return lon
}

// normalizeLongitude returns the equivalent of lon in [-180°, 180°).
func normalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	return lon - 360*math.Floor((lon+180)/360)
}

func (g *CurvilinearGrid) corner(ci, cj int) (lon, lat float64) {
	k := cj*(g.ni+1) + ci
	return g.cornerLons[k], g.cornerLats[k]
}

func (g *CurvilinearGrid) buildCells() {
	g.cells = make([]Cell, g.ni*g.nj)
	for j := 0; j < g.nj; j++ {
		for i := 0; i < g.ni; i++ {
			c := &g.cells[j*g.ni+i]
			c.I, c.J = i, j

			lon0, lat0 := g.corner(i, j)
			lon1, lat1 := g.corner(i+1, j)
			lon2, lat2 := g.corner(i+1, j+1)
			lon3, lat3 := g.corner(i, j+1)

			// Harmonize corner longitudes so a cell straddling the
			// anti-meridian forms a continuous ring.
			lon1 = nearestLongitude(lon0, lon1)
			lon2 = nearestLongitude(lon0, lon2)
			lon3 = nearestLongitude(lon0, lon3)

			cLon := (lon0 + lon1 + lon2 + lon3) / 4
			cLat := (lat0 + lat1 + lat2 + lat3) / 4
			if math.IsNaN(cLon) || math.IsNaN(cLat) {
				c.Centre = geom.Point{X: math.NaN(), Y: math.NaN()}
				continue // masked cell
			}
			c.Centre = geom.Point{X: normalizeLongitude(cLon), Y: cLat}
			ring := []geom.Point{
				{X: lon0, Y: lat0},
				{X: lon1, Y: lat1},
				{X: lon2, Y: lat2},
				{X: lon3, Y: lat3},
				{X: lon0, Y: lat0},
			}
			c.boundary = geom.Polygon{ring}
			c.bounds = *c.boundary.Bounds()
		}
	}
}

// Ni returns the number of cells along the i axis.
func (g *CurvilinearGrid) Ni() int { return g.ni }

// Nj returns the number of cells along the j axis.
func (g *CurvilinearGrid) Nj() int { return g.nj }

// Size returns the total number of cells.
func (g *CurvilinearGrid) Size() int { return g.ni * g.nj }

// Extent returns the index bounding box of the grid.
func (g *CurvilinearGrid) Extent() GridExtent {
	return GridExtent{MinI: 0, MinJ: 0, MaxI: g.ni - 1, MaxJ: g.nj - 1}
}

// Cell returns the cell at (i, j).
func (g *CurvilinearGrid) Cell(i, j int) *Cell {
	return &g.cells[j*g.ni+i]
}

// CellByIndex returns the cell with the given linear index, in row-major
// order.
func (g *CurvilinearGrid) CellByIndex(k int) *Cell {
	return &g.cells[k]
}

// Neighbors appends the cells sharing an edge with c (up to four) to buf
// and returns the result. Masked neighbors are included; they never win a
// distance comparison because their centers are NaN.
func (g *CurvilinearGrid) Neighbors(c *Cell, buf []*Cell) []*Cell {
	if c.I > 0 {
		buf = append(buf, g.Cell(c.I-1, c.J))
	}
	if c.I < g.ni-1 {
		buf = append(buf, g.Cell(c.I+1, c.J))
	}
	if c.J > 0 {
		buf = append(buf, g.Cell(c.I, c.J-1))
	}
	if c.J < g.nj-1 {
		buf = append(buf, g.Cell(c.I, c.J+1))
	}
	return buf
}

// MeanCellArea returns the average area of the grid's valid cells in
// square degrees, or zero if the grid is fully masked. The value is
// computed once and cached.
func (g *CurvilinearGrid) MeanCellArea() float64 {
	g.areaOnce.Do(func() {
		var sum float64
		var n int
		for k := range g.cells {
			c := &g.cells[k]
			if !c.Valid() {
				continue
			}
			sum += math.Abs(c.boundary.Area())
			n++
		}
		if n > 0 {
			g.meanArea = sum / float64(n)
		}
	})
	return g.meanArea
}

// Key returns a content-based identity for the grid: two grids built from
// equal corner coordinate arrays have equal keys. It is used to cache
// expensive per-grid structures across requests.
func (g *CurvilinearGrid) Key() string {
	g.keyOnce.Do(func() {
		g.key = hash.Hash(struct {
			Ni, Nj     int
			Lons, Lats []float64
		}{g.ni, g.nj, g.cornerLons, g.cornerLats})
	})
	return g.key
}

// Valid reports whether the cell is unmasked.
func (c *Cell) Valid() bool {
	return !math.IsNaN(c.Centre.X) && !math.IsNaN(c.Centre.Y)
}

// Contains reports whether the point p lies within the cell's boundary.
// Because longitude is periodic, p is also tested shifted by ±360°, which
// resolves false negatives for cells straddling the anti-meridian.
// Masked cells contain nothing.
func (c *Cell) Contains(p geom.Point) bool {
	if !c.Valid() {
		return false
	}
	for _, shift := range [3]float64{0, 360, -360} {
		q := geom.Point{X: p.X + shift, Y: p.Y}
		if !c.bounds.Overlaps(q.Bounds()) {
			continue
		}
		if q.Within(c.boundary) != geom.Outside {
			return true
		}
	}
	return false
}

// DistanceSq returns the squared distance in degrees between p and the
// cell center, with the longitude difference taken modulo 360°. It is a
// ranking proxy only; containment decisions use Contains.
func (c *Cell) DistanceSq(p geom.Point) float64 {
	dLon := math.Abs(p.X - c.Centre.X)
	if dLon > 180 {
		dLon = 360 - dLon
	}
	dLat := p.Y - c.Centre.Y
	return dLon*dLon + dLat*dLat
}
