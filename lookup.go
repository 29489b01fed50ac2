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
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridmap/kdtree"
)

// A LookupGrid maps arbitrary longitude-latitude positions to cells of a
// curvilinear grid. It combines a k-d tree over cell centers with exact
// containment tests and a bounded descent over the cell-neighbor graph.
//
// LookupGrids are expensive to build; obtain them through
// GenerateLookupGrid, which caches them by grid content.
type LookupGrid struct {
	grid *CurvilinearGrid
	tree *kdtree.Tree

	// Query tuning. These are set before the grid is shared between
	// goroutines and read-only afterwards.
	maxDistance            float64
	minimisationIterations int
}

const defaultMinimisationIterations = 1

// newLookupGrid indexes the valid cells of grid. The default maximum
// search distance scales with the mean cell size so that queries more
// than about one cell away from the mesh return no match.
func newLookupGrid(grid *CurvilinearGrid) *LookupGrid {
	points := make([]kdtree.Point, 0, grid.Size())
	for k := 0; k < grid.Size(); k++ {
		c := grid.CellByIndex(k)
		if !c.Valid() {
			continue
		}
		points = append(points, kdtree.Point{
			Latitude:  c.Centre.Y,
			Longitude: c.Centre.X,
			Index:     k,
		})
	}
	return &LookupGrid{
		grid:                   grid,
		tree:                   kdtree.New(points),
		maxDistance:            math.Sqrt(grid.MeanCellArea()),
		minimisationIterations: defaultMinimisationIterations,
	}
}

// SetQueryParameters tunes the nearest-cell search: the k-d tree's
// radius-expansion factor and starting radius, the maximum search
// distance in degrees, and the number of neighbor-descent iterations
// (0 accepts the best tree candidate unrefined, 1 examines immediate
// neighbors once, larger values follow the descending path further).
// It must not be called concurrently with NearestCell.
func (lg *LookupGrid) SetQueryParameters(expansionFactor, minResolution, maxDistance float64, minimisationIterations int) {
	lg.tree.SetQueryParameters(expansionFactor, minResolution)
	if maxDistance > 0 {
		lg.maxDistance = maxDistance
	}
	if minimisationIterations >= 0 {
		lg.minimisationIterations = minimisationIterations
	}
}

// Grid returns the underlying curvilinear grid.
func (lg *LookupGrid) Grid() *CurvilinearGrid { return lg.grid }

// CRS returns the WGS84 longitude-latitude reference system; curvilinear
// coordinate arrays are always geographic.
func (lg *LookupGrid) CRS() *proj.SR { return WGS84() }

// Len returns the number of cells in the underlying grid.
func (lg *LookupGrid) Len() int { return lg.grid.Size() }

// Position returns the center of the cell with linear index k.
func (lg *LookupGrid) Position(k int) geom.Point {
	return lg.grid.CellByIndex(k).Centre
}

// Extent returns the index bounding box of the underlying grid.
func (lg *LookupGrid) Extent() GridExtent { return lg.grid.Extent() }

// Coordinates returns the center of cell (i, j).
func (lg *LookupGrid) Coordinates(i, j int) geom.Point {
	return lg.grid.Cell(i, j).Centre
}

// NearestCell returns the indices of the cell containing or nearest to
// the longitude-latitude position (x, y). ok is false when no cell lies
// within the maximum search distance, which callers treat as "leave
// this point unmapped" rather than as an error.
//
// The result is a bounded approximation: when the point falls in a gap
// between candidate cells, the closest cell found by neighbor descent is
// returned even if it does not strictly contain the point.
func (lg *LookupGrid) NearestCell(x, y float64) (i, j int, ok bool) {
	p := geom.Point{X: normalizeLongitude(x), Y: y}
	candidates := lg.tree.ApproxNearestNeighbour(p.Y, p.X, lg.maxDistance)
	// Indexed positions are normalized to [-180°, 180°), so a query
	// near the anti-meridian may need the other representation of its
	// longitude to find its neighbors.
	for _, shift := range [2]float64{-360, 360} {
		if len(candidates) > 0 {
			break
		}
		candidates = lg.tree.ApproxNearestNeighbour(p.Y, p.X+shift, lg.maxDistance)
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}

	// Rank candidates by proxy distance to the cell center.
	shortest := math.Inf(1)
	var closest *Cell
	for _, cand := range candidates {
		cell := lg.grid.CellByIndex(cand.Index)
		if d := cell.DistanceSq(p); d < shortest {
			shortest = d
			closest = cell
		}
	}
	if closest == nil {
		return 0, 0, false
	}
	if closest.Contains(p) {
		return closest.I, closest.J, true
	}

	// Descend the neighbor graph toward the query point.
	examined := map[*Cell]struct{}{closest: {}}
	var neighbors []*Cell
	improved := true
	for it := 0; improved && it < lg.minimisationIterations; it++ {
		improved = false
		neighbors = lg.grid.Neighbors(closest, neighbors[:0])
		for _, n := range neighbors {
			if _, seen := examined[n]; seen {
				continue
			}
			examined[n] = struct{}{}
			if d := n.DistanceSq(p); d < shortest {
				closest = n
				shortest = d
				improved = true
				if n.Contains(p) {
					return n.I, n.J, true
				}
			}
		}
	}
	return closest.I, closest.J, true
}

// lookupGridCache deduplicates and memoizes LookupGrid construction
// process-wide, keyed by grid content, so concurrent requests for the
// same grid trigger at most one index build and requests for different
// grids never block each other.
var lookupGridCache = struct {
	sync.Mutex
	cache *requestcache.Cache
}{}

const lookupGridCacheEntries = 10

func newLookupGridCache() *requestcache.Cache {
	return requestcache.NewCache(
		func(ctx context.Context, request interface{}) (interface{}, error) {
			grid := request.(*CurvilinearGrid)
			logrus.WithFields(logrus.Fields{
				"cells": grid.Size(),
				"key":   grid.Key(),
			}).Debug("gridmap: building lookup grid")
			return newLookupGrid(grid), nil
		},
		1, requestcache.Deduplicate(), requestcache.Memory(lookupGridCacheEntries),
	)
}

// GenerateLookupGrid returns the cached LookupGrid for grid, building
// and caching it on first use. Two grids with equal corner coordinates
// share one LookupGrid regardless of when they were constructed.
func GenerateLookupGrid(ctx context.Context, grid *CurvilinearGrid) (*LookupGrid, error) {
	lookupGridCache.Lock()
	if lookupGridCache.cache == nil {
		lookupGridCache.cache = newLookupGridCache()
	}
	c := lookupGridCache.cache
	lookupGridCache.Unlock()

	result, err := c.NewRequest(ctx, grid, "lookupgrid_"+grid.Key()).Result()
	if err != nil {
		return nil, fmt.Errorf("gridmap: generating lookup grid: %v", err)
	}
	return result.(*LookupGrid), nil
}

// ClearLookupGridCache releases all cached lookup grids. It is intended
// for memory pressure relief and test isolation.
func ClearLookupGridCache() {
	lookupGridCache.Lock()
	lookupGridCache.cache = nil
	lookupGridCache.Unlock()
}
