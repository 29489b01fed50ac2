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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// A SubgridDomain is a target domain made of the source grid's own cell
// positions within an index rectangle, optionally subsampled by a
// stride. Using it as the target of NewPixelMap makes the map an
// identity crop of the source, so readers can fetch the covered
// rectangle verbatim instead of remapping point by point. It serves
// requests whose output raster is an axis-aligned window onto the
// source data itself.
type SubgridDomain struct {
	source HorizontalGrid

	// Covered source index rectangle and the sampling stride along
	// each axis.
	ext              GridExtent
	strideI, strideJ int

	// Sampled raster shape.
	ni, nj int
}

// NewSubgridDomain computes the smallest source index rectangle covering
// the given bounding box (in the source's own coordinates), expanded by
// one cell of margin and clamped to the grid. If the rectangle holds
// more cells along an axis than maxNi or maxNj, cells are subsampled
// with a regular stride so the domain stays within those limits; pass
// zero to leave an axis unlimited.
//
// A bounding box that misses the source grid entirely yields a domain
// with zero points, which in turn yields an empty PixelMap.
func NewSubgridDomain(source HorizontalGrid, b *geom.Bounds, maxNi, maxNj int) (*SubgridDomain, error) {
	if maxNi < 0 || maxNj < 0 {
		return nil, fmt.Errorf("gridmap: negative subgrid size limit %d×%d", maxNi, maxNj)
	}
	d := &SubgridDomain{source: source, strideI: 1, strideJ: 1}

	corners := [4]geom.Point{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Max.X, Y: b.Max.Y},
	}
	found := false
	for _, p := range corners {
		i, j, ok := source.NearestCell(p.X, p.Y)
		if !ok {
			continue
		}
		if !found {
			d.ext = GridExtent{MinI: i, MinJ: j, MaxI: i, MaxJ: j}
			found = true
			continue
		}
		if i < d.ext.MinI {
			d.ext.MinI = i
		}
		if i > d.ext.MaxI {
			d.ext.MaxI = i
		}
		if j < d.ext.MinJ {
			d.ext.MinJ = j
		}
		if j > d.ext.MaxJ {
			d.ext.MaxJ = j
		}
	}
	if !found {
		return d, nil // no overlap; zero points
	}

	// One cell of margin so interpolation at the window edge has data,
	// clamped to the grid.
	full := source.Extent()
	d.ext.MinI = clampInt(d.ext.MinI-1, full.MinI, full.MaxI)
	d.ext.MaxI = clampInt(d.ext.MaxI+1, full.MinI, full.MaxI)
	d.ext.MinJ = clampInt(d.ext.MinJ-1, full.MinJ, full.MaxJ)
	d.ext.MaxJ = clampInt(d.ext.MaxJ+1, full.MinJ, full.MaxJ)

	d.strideI = strideFor(d.ext.SpanI(), maxNi)
	d.strideJ = strideFor(d.ext.SpanJ(), maxNj)
	d.ni = 1 + (d.ext.SpanI()-1)/d.strideI
	d.nj = 1 + (d.ext.SpanJ()-1)/d.strideJ
	return d, nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// strideFor returns the smallest sampling stride that brings span cells
// within the limit, or 1 when the limit is zero.
func strideFor(span, limit int) int {
	if limit <= 0 || span <= limit {
		return 1
	}
	return (span + limit - 1) / limit
}

// CRS returns the source grid's reference system.
func (d *SubgridDomain) CRS() *proj.SR { return d.source.CRS() }

// Len returns the number of sampled source cells.
func (d *SubgridDomain) Len() int { return d.ni * d.nj }

// Position returns the source cell position of the k'th sampled point.
func (d *SubgridDomain) Position(k int) geom.Point {
	i, j := d.sourceIndices(k)
	return d.source.Coordinates(i, j)
}

// Extent returns the covered source index rectangle.
func (d *SubgridDomain) Extent() GridExtent { return d.ext }

// Strides returns the sampling stride along each axis.
func (d *SubgridDomain) Strides() (strideI, strideJ int) {
	return d.strideI, d.strideJ
}

// SampledShape returns the dimensions of the sampled raster.
func (d *SubgridDomain) SampledShape() (ni, nj int) { return d.ni, d.nj }

// sourceIndices returns the source grid indices of the k'th sampled
// point, in row-major order over the sampled raster.
func (d *SubgridDomain) sourceIndices(k int) (i, j int) {
	return d.ext.MinI + (k%d.ni)*d.strideI, d.ext.MinJ + (k/d.ni)*d.strideJ
}
