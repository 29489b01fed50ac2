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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// A PointList is an arbitrary finite sequence of positions in a single
// coordinate reference system, used as a remapping target when the
// target positions do not form a grid.
type PointList struct {
	points []geom.Point
	sr     *proj.SR
}

// NewPointList creates a PointList. The slice is retained, not copied.
func NewPointList(points []geom.Point, sr *proj.SR) *PointList {
	return &PointList{points: points, sr: sr}
}

// CRS returns the reference system of the points.
func (pl *PointList) CRS() *proj.SR { return pl.sr }

// Len returns the number of points.
func (pl *PointList) Len() int { return len(pl.points) }

// Position returns the k'th point.
func (pl *PointList) Position(k int) geom.Point { return pl.points[k] }
