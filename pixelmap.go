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
)

// A PixelMap records, for every point of a target domain, the source
// grid cell nearest to it. Entries are held as two parallel arrays of
// linear indices, stored at the narrowest integer width that fits and
// sorted by (source index, target index) so that all target points fed
// by one source cell are adjacent. Readers use the map to fetch each
// required source cell exactly once, in index order, no matter how many
// target points it supplies.
//
// A PixelMap with no entries is valid: it means the source and target
// domains do not overlap, and callers should produce an empty result
// (such as a transparent map tile) without touching the data source.
type PixelMap struct {
	// sourceNi is the row length used to decode linear source indices
	// into (i, j).
	sourceNi int

	source, target indexArray

	minI, minJ, maxI, maxJ int

	uniqueCells int
}

// maxTargetSize bounds the target domain so that every target index fits
// in an int32.
const maxTargetSize = math.MaxInt32

// NewPixelMap maps every position of the target domain to its nearest
// cell in the source grid, choosing a construction strategy by the shapes
// involved:
//
//   - If source and target are both axis-aligned longitude-latitude
//     grids, each axis is matched independently by binary search and no
//     point-by-point spatial lookup happens.
//   - If the target is a SubgridDomain over the source grid, each source
//     cell of the covered index rectangle maps one-to-one onto itself.
//   - Otherwise each target position is transformed to the source
//     reference system and looked up individually.
//
// Target positions with no matching source cell are omitted; a target
// wholly outside the source footprint yields an empty map, not an error.
// Construction fails if no coordinate transform exists between the two
// reference systems, or if the target domain is too large to index.
func NewPixelMap(source HorizontalGrid, target Domain) (*PixelMap, error) {
	if int64(target.Len()) > maxTargetSize {
		return nil, ErrDomainTooLarge
	}
	ext := source.Extent()
	pm := &PixelMap{
		sourceNi: ext.SpanI(),
		source:   newIndexArray(int64(source.Len()) - 1),
		target:   newIndexArray(int64(target.Len()) - 1),
		minI:     math.MaxInt32,
		minJ:     math.MaxInt32,
		maxI:     -1,
		maxJ:     -1,
	}

	var err error
	switch tgt := target.(type) {
	case *SubgridDomain:
		err = pm.putSubgrid(source, tgt)
	case *RectilinearGrid:
		if src, ok := source.(*RectilinearGrid); ok && isLonLat(src.CRS()) && isLonLat(tgt.CRS()) {
			pm.putRectilinear(src, tgt)
			break
		}
		err = pm.putGeneric(source, target)
	default:
		err = pm.putGeneric(source, target)
	}
	if err != nil {
		return nil, err
	}

	sort.Sort((*pixelMapOrder)(pm))
	pm.countUniqueCells()
	return pm, nil
}

// putGeneric transforms each target position into the source reference
// system and queries the source grid for its nearest cell. Positions
// that fail to transform (such as points outside a projection's valid
// area) are skipped.
func (pm *PixelMap) putGeneric(source HorizontalGrid, target Domain) error {
	transform, err := domainTransform(target, source)
	if err != nil {
		return err
	}
	for k := 0; k < target.Len(); k++ {
		p := target.Position(k)
		x, y := p.X, p.Y
		if transform != nil {
			x, y, err = transform(x, y)
			if err != nil {
				continue
			}
		}
		if i, j, ok := source.NearestCell(x, y); ok {
			pm.put(i, j, k)
		}
	}
	return nil
}

// putRectilinear matches the axes of two longitude-latitude grids
// independently: each target column is assigned a source column and each
// target row a source row by binary search, avoiding a 2D lookup per
// point.
func (pm *PixelMap) putRectilinear(src, tgt *RectilinearGrid) {
	xIndices := make([]int, tgt.XAxis().Len())
	for ti := range xIndices {
		xIndices[ti] = src.XAxis().NearestIndex(tgt.XAxis().Value(ti))
	}
	for tj := 0; tj < tgt.YAxis().Len(); tj++ {
		j := src.YAxis().NearestIndex(tgt.YAxis().Value(tj))
		if j < 0 {
			continue
		}
		for ti, i := range xIndices {
			if i < 0 {
				continue
			}
			pm.put(i, j, tj*len(xIndices)+ti)
		}
	}
}

// putSubgrid maps each source cell of the subgrid's index rectangle onto
// itself, supporting a "read this source rectangle verbatim" path with
// no per-point lookups at all.
func (pm *PixelMap) putSubgrid(source HorizontalGrid, tgt *SubgridDomain) error {
	if tgt.source != source {
		return fmt.Errorf("gridmap: subgrid domain was built over a different source grid")
	}
	for k := 0; k < tgt.Len(); k++ {
		i, j := tgt.sourceIndices(k)
		pm.put(i, j, k)
	}
	return nil
}

// put appends the pair (source cell (i, j), target index k) and widens
// the source bounding index range to cover it.
func (pm *PixelMap) put(i, j, k int) {
	pm.source.push(int64(j)*int64(pm.sourceNi) + int64(i))
	pm.target.push(int64(k))
	if i < pm.minI {
		pm.minI = i
	}
	if i > pm.maxI {
		pm.maxI = i
	}
	if j < pm.minJ {
		pm.minJ = j
	}
	if j > pm.maxJ {
		pm.maxJ = j
	}
}

func (pm *PixelMap) countUniqueCells() {
	var prev int64 = -1
	for k := 0; k < pm.source.len(); k++ {
		if s := pm.source.get(k); s != prev {
			pm.uniqueCells++
			prev = s
		}
	}
}

// pixelMapOrder sorts the paired index arrays by (source index, target
// index) ascending.
type pixelMapOrder PixelMap

func (o *pixelMapOrder) Len() int { return o.source.len() }

func (o *pixelMapOrder) Less(k, l int) bool {
	sk, sl := o.source.get(k), o.source.get(l)
	if sk != sl {
		return sk < sl
	}
	return o.target.get(k) < o.target.get(l)
}

func (o *pixelMapOrder) Swap(k, l int) {
	o.source.swap(k, l)
	o.target.swap(k, l)
}

// Empty reports whether no target point found a source cell.
func (pm *PixelMap) Empty() bool { return pm.source.len() == 0 }

// Len returns the number of (source, target) pairs.
func (pm *PixelMap) Len() int { return pm.source.len() }

// NumUniqueCells returns the number of distinct source cells that supply
// at least one target point. Comparing it against the area of
// BoundingIndexRange tells a reader whether the touched cells are dense
// (read the whole rectangle in one call) or sparse (read cell by cell).
func (pm *PixelMap) NumUniqueCells() int { return pm.uniqueCells }

// BoundingIndexRange returns the smallest source index rectangle
// containing every mapped cell. For an empty map, the minima exceed the
// maxima (math.MaxInt32 and -1 respectively).
func (pm *PixelMap) BoundingIndexRange() GridExtent {
	return GridExtent{MinI: pm.minI, MinJ: pm.minJ, MaxI: pm.maxI, MaxJ: pm.maxJ}
}

// A PixelMapEntry reports one source cell together with all target
// indices it supplies.
type PixelMapEntry struct {
	SourceI, SourceJ int
	TargetIndices    []int
}

// A PixelMapIterator walks a PixelMap one distinct source cell at a
// time, in increasing source index order.
type PixelMapIterator struct {
	pm  *PixelMap
	pos int
}

// Iterate returns a fresh iterator over the map's entries. Multiple
// iterators may be in use concurrently; the map is not modified by
// iteration.
func (pm *PixelMap) Iterate() *PixelMapIterator {
	return &PixelMapIterator{pm: pm}
}

// Next returns the next entry. ok is false when the map is exhausted.
func (it *PixelMapIterator) Next() (entry PixelMapEntry, ok bool) {
	pm := it.pm
	if it.pos >= pm.source.len() {
		return PixelMapEntry{}, false
	}
	s := pm.source.get(it.pos)
	entry.SourceI = int(s % int64(pm.sourceNi))
	entry.SourceJ = int(s / int64(pm.sourceNi))
	for it.pos < pm.source.len() && pm.source.get(it.pos) == s {
		entry.TargetIndices = append(entry.TargetIndices, int(pm.target.get(it.pos)))
		it.pos++
	}
	return entry, true
}
