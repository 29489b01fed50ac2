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

// Package gridmap remaps gridded geophysical data between arbitrary
// horizontal grids. It provides a curvilinear grid abstraction, a spatial
// index for nearest-cell lookup, and the PixelMap structure that maps every
// point of a target domain to the source grid cell that should supply its
// value, so that data extraction can read each required cell exactly once.
package gridmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// ErrDomainTooLarge is returned when a target domain has more points than
// can be indexed internally.
var ErrDomainTooLarge = errors.New("gridmap: target domain too large")

// Domain is a finite sequence of horizontal positions in a shared
// coordinate reference system.
type Domain interface {
	// CRS returns the coordinate reference system of the positions.
	CRS() *proj.SR

	// Len returns the number of positions in the domain.
	Len() int

	// Position returns the position with the given linear index,
	// where 0 <= k < Len().
	Position(k int) geom.Point
}

// GridExtent is the inclusive index bounding box of a grid.
type GridExtent struct {
	MinI, MinJ, MaxI, MaxJ int
}

// SpanI returns the number of indices along the i axis.
func (e GridExtent) SpanI() int { return e.MaxI - e.MinI + 1 }

// SpanJ returns the number of indices along the j axis.
func (e GridExtent) SpanJ() int { return e.MaxJ - e.MinJ + 1 }

// A HorizontalGrid is a two-dimensional grid of cells. Cell (i, j) has a
// representative position (its center) in the grid's coordinate reference
// system, and the grid can find the cell nearest to an arbitrary position.
type HorizontalGrid interface {
	Domain

	// Extent returns the index bounding box of the grid.
	Extent() GridExtent

	// Coordinates returns the center position of cell (i, j)
	// in the grid's own coordinate reference system.
	Coordinates(i, j int) geom.Point

	// NearestCell returns the indices of the cell containing or nearest
	// to the position (x, y), given in the grid's own coordinate
	// reference system. ok is false if no cell matches.
	NearestCell(x, y float64) (i, j int, ok bool)
}

var (
	wgs84Once sync.Once
	wgs84     *proj.SR
)

// WGS84 returns the WGS84 longitude-latitude spatial reference.
func WGS84() *proj.SR {
	wgs84Once.Do(func() {
		var err error
		wgs84, err = proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
		if err != nil {
			panic(err) // The projection string is a constant.
		}
	})
	return wgs84
}

// isLonLat reports whether sr is an unprojected longitude-latitude
// coordinate system.
func isLonLat(sr *proj.SR) bool {
	return sr != nil && sr.Name == "longlat"
}

// domainTransform returns a function converting positions from the
// target domain's reference system to the source grid's, or nil when
// the two systems are equivalent and no conversion is needed. An error
// means no conversion path exists; mapping between the two domains is
// then impossible.
func domainTransform(target Domain, source HorizontalGrid) (proj.Transformer, error) {
	from, to := target.CRS(), source.CRS()
	if from == nil || to == nil || from == to {
		return nil, nil
	}
	if isLonLat(from) && isLonLat(to) {
		return nil, nil
	}
	if from.Equal(to, 10) {
		return nil, nil
	}
	t, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("gridmap: no transform between coordinate systems %q and %q: %v",
			from.Name, to.Name, err)
	}
	return t, nil
}
