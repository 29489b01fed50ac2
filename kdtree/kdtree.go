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

// Package kdtree provides a static two-dimensional k-d tree over
// latitude-longitude points for approximate nearest-neighbor candidate
// queries. The tree is bulk-built once and is safe for concurrent
// queries afterwards.
package kdtree

import "math"

const (
	// DefaultExpansionFactor is the multiple by which the search radius
	// grows when a query box turns up no candidates.
	DefaultExpansionFactor = 3.5

	// DefaultMinResolution is the starting search radius in degrees.
	DefaultMinResolution = 1e-4
)

// A Point is an indexed position stored in the tree. Index is the
// caller's identifier for the point, typically a linear grid-cell index.
type Point struct {
	Latitude, Longitude float64
	Index               int
}

// A Tree is a k-d tree over Points. The zero value is not usable;
// call New.
type Tree struct {
	// points holds the tree in kd order: for the slice segment of each
	// subtree the median element sits at the segment midpoint, with
	// smaller coordinates (along the segment's splitting axis) to its
	// left and larger to its right. Axes alternate latitude, longitude
	// by depth.
	points []Point

	expansionFactor float64
	minResolution   float64
}

// New bulk-builds a tree from the given points. Points with a NaN
// coordinate are dropped. The input slice is not retained.
func New(points []Point) *Tree {
	t := &Tree{
		points:          make([]Point, 0, len(points)),
		expansionFactor: DefaultExpansionFactor,
		minResolution:   DefaultMinResolution,
	}
	for _, p := range points {
		if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
			continue
		}
		t.points = append(t.points, p)
	}
	t.build(0, len(t.points), 0)
	return t
}

// SetQueryParameters tunes the radius-expansion search. Non-positive
// arguments leave the corresponding parameter unchanged.
func (t *Tree) SetQueryParameters(expansionFactor, minResolution float64) {
	if expansionFactor > 0 {
		t.expansionFactor = expansionFactor
	}
	if minResolution > 0 {
		t.minResolution = minResolution
	}
}

// Len returns the number of indexed points.
func (t *Tree) Len() int { return len(t.points) }

// build arranges t.points[lo:hi] into kd order by repeated median
// selection along alternating axes.
func (t *Tree) build(lo, hi, depth int) {
	if hi-lo <= 1 {
		return
	}
	mid := lo + (hi-lo)/2
	t.selectNth(lo, hi, mid, depth%2)
	t.build(lo, mid, depth+1)
	t.build(mid+1, hi, depth+1)
}

// selectNth partially sorts t.points[lo:hi] so that the element at n is
// the one that would be there if the segment were sorted along axis.
func (t *Tree) selectNth(lo, hi, n, axis int) {
	hi-- // inclusive
	for lo < hi {
		p := t.partition(lo, hi, (lo+hi)/2, axis)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func (t *Tree) partition(lo, hi, pivot, axis int) int {
	pts := t.points
	pv := t.coord(pivot, axis)
	pts[pivot], pts[hi] = pts[hi], pts[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if t.coord(j, axis) < pv {
			pts[i], pts[j] = pts[j], pts[i]
			i++
		}
	}
	pts[i], pts[hi] = pts[hi], pts[i]
	return i
}

func (t *Tree) coord(i, axis int) float64 {
	if axis == 0 {
		return t.points[i].Latitude
	}
	return t.points[i].Longitude
}

// ApproxNearestNeighbour returns candidate points near (lat, lon). The
// search box starts at the tree's minimum resolution and is widened by
// the expansion factor until it contains at least one point or exceeds
// maxDistance (in degrees along each axis). An empty tree, or a query
// farther than maxDistance from every point, yields an empty slice.
//
// The result is approximate: candidates are selected by axis-aligned
// box distance, so the true nearest point to the query is not
// guaranteed to be present. Callers refine candidates with exact
// geometry.
func (t *Tree) ApproxNearestNeighbour(lat, lon, maxDistance float64) []Point {
	if len(t.points) == 0 || maxDistance <= 0 {
		return nil
	}
	r := t.minResolution
	if r > maxDistance {
		r = maxDistance
	}
	for {
		var out []Point
		out = t.rangeQuery(out, lat-r, lat+r, lon-r, lon+r, 0, len(t.points), 0)
		if len(out) > 0 {
			return out
		}
		if r >= maxDistance {
			return nil
		}
		r *= t.expansionFactor
		if r > maxDistance {
			r = maxDistance
		}
	}
}

// RangeQuery returns all points within the axis-aligned box.
func (t *Tree) RangeQuery(minLat, maxLat, minLon, maxLon float64) []Point {
	return t.rangeQuery(nil, minLat, maxLat, minLon, maxLon, 0, len(t.points), 0)
}

func (t *Tree) rangeQuery(out []Point, minLat, maxLat, minLon, maxLon float64, lo, hi, depth int) []Point {
	if hi <= lo {
		return out
	}
	mid := lo + (hi-lo)/2
	p := t.points[mid]
	if p.Latitude >= minLat && p.Latitude <= maxLat &&
		p.Longitude >= minLon && p.Longitude <= maxLon {
		out = append(out, p)
	}
	var v, min, max float64
	if depth%2 == 0 {
		v, min, max = p.Latitude, minLat, maxLat
	} else {
		v, min, max = p.Longitude, minLon, maxLon
	}
	if min <= v {
		out = t.rangeQuery(out, minLat, maxLat, minLon, maxLon, lo, mid, depth+1)
	}
	if max >= v {
		out = t.rangeQuery(out, minLat, maxLat, minLon, maxLon, mid+1, hi, depth+1)
	}
	return out
}
