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

package cdm

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/gridmap"
)

// A Strategy selects how the cells named by a PixelMap are fetched from
// the file.
type Strategy int

const (
	// StrategyAuto picks between the other strategies from the pixel
	// map's density: when the touched cells nearly fill their bounding
	// rectangle one bulk read wins, when they are sparse many small
	// reads transfer less data.
	StrategyAuto Strategy = iota

	// StrategyBoundingBox reads the whole source index rectangle
	// touched by the map in a single call.
	StrategyBoundingBox

	// StrategyCellByCell issues one read per unique source cell.
	StrategyCellByCell
)

// autoDensityThreshold is the fraction of the bounding rectangle that
// must be touched before StrategyAuto bulk-reads the rectangle.
const autoDensityThreshold = 1.0 / 16

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyBoundingBox:
		return "boundingbox"
	case StrategyCellByCell:
		return "cellbycell"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ReadPixelMap extracts the variable values for every source cell named
// by the pixel map and scatters them to the target positions, returning
// a one-dimensional array of targetLen values in target order. Target
// positions with no source cell hold NaN, as do masked source values.
// tIndex and zIndex select the time step and vertical level for
// variables that have those dimensions; they are ignored otherwise.
func (d *Dataset) ReadPixelMap(name string, pm *gridmap.PixelMap, tIndex, zIndex, targetLen int, strategy Strategy) (*sparse.DenseArray, error) {
	v, err := d.Variable(name)
	if err != nil {
		return nil, err
	}
	if v.tDim >= 0 && (tIndex < 0 || tIndex >= v.Nt()) {
		return nil, fmt.Errorf("cdm: variable %q: time index %d out of range [0, %d)", name, tIndex, v.Nt())
	}
	if v.zDim >= 0 && (zIndex < 0 || zIndex >= v.Nz()) {
		return nil, fmt.Errorf("cdm: variable %q: level index %d out of range [0, %d)", name, zIndex, v.Nz())
	}

	out := sparse.ZerosDense(targetLen)
	for k := range out.Elements {
		out.Elements[k] = math.NaN()
	}
	if pm.Empty() {
		return out, nil
	}

	ext := pm.BoundingIndexRange()
	if ext.MaxI >= v.Nx() || ext.MaxJ >= v.Ny() {
		return nil, fmt.Errorf("cdm: variable %q: pixel map touches cell (%d, %d) outside the %d×%d variable",
			name, ext.MaxI, ext.MaxJ, v.Nx(), v.Ny())
	}

	if strategy == StrategyAuto {
		density := float64(pm.NumUniqueCells()) / float64(ext.SpanI()*ext.SpanJ())
		if density < autoDensityThreshold {
			strategy = StrategyCellByCell
		} else {
			strategy = StrategyBoundingBox
		}
	}
	switch strategy {
	case StrategyBoundingBox:
		err = d.readBoundingBox(v, pm, tIndex, zIndex, out)
	case StrategyCellByCell:
		err = d.readCellByCell(v, pm, tIndex, zIndex, out)
	default:
		err = fmt.Errorf("cdm: unknown read strategy %v", strategy)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// corners builds the begin and end index vectors for a read covering the
// given cell rectangle at one time step and level. Dimensions that are
// neither spatial nor temporal are pinned to their first index.
func (v *Variable) corners(minI, maxI, minJ, maxJ, tIndex, zIndex int) (begin, end []int) {
	begin = make([]int, len(v.dims))
	end = make([]int, len(v.dims))
	for k := range v.dims {
		switch k {
		case v.xDim:
			begin[k], end[k] = minI, maxI+1
		case v.yDim:
			begin[k], end[k] = minJ, maxJ+1
		case v.zDim:
			begin[k], end[k] = zIndex, zIndex+1
		case v.tDim:
			begin[k], end[k] = tIndex, tIndex+1
		default:
			begin[k], end[k] = 0, 1
		}
	}
	return begin, end
}

// readBoundingBox reads the map's whole source index rectangle in one
// call and scatters the mapped cells from it.
func (d *Dataset) readBoundingBox(v *Variable, pm *gridmap.PixelMap, tIndex, zIndex int, out *sparse.DenseArray) error {
	ext := pm.BoundingIndexRange()
	begin, end := v.corners(ext.MinI, ext.MaxI, ext.MinJ, ext.MaxJ, tIndex, zIndex)
	r := d.f.Reader(v.Name, begin, end)
	n := ext.SpanI() * ext.SpanJ()
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return fmt.Errorf("cdm: reading %q slab: %v", v.Name, err)
	}
	vals, err := toFloat64s(buf)
	if err != nil {
		return err
	}
	it := pm.Iterate()
	for {
		e, ok := it.Next()
		if !ok {
			return nil
		}
		raw := vals[(e.SourceJ-ext.MinJ)*ext.SpanI()+(e.SourceI-ext.MinI)]
		val := v.decode(raw)
		for _, t := range e.TargetIndices {
			out.Elements[t] = val
		}
	}
}

// readCellByCell issues one single-cell read per unique source cell.
func (d *Dataset) readCellByCell(v *Variable, pm *gridmap.PixelMap, tIndex, zIndex int, out *sparse.DenseArray) error {
	it := pm.Iterate()
	for {
		e, ok := it.Next()
		if !ok {
			return nil
		}
		begin, end := v.corners(e.SourceI, e.SourceI, e.SourceJ, e.SourceJ, tIndex, zIndex)
		r := d.f.Reader(v.Name, begin, end)
		buf := r.Zero(1)
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("cdm: reading %q cell (%d, %d): %v", v.Name, e.SourceI, e.SourceJ, err)
		}
		vals, err := toFloat64s(buf)
		if err != nil {
			return err
		}
		val := v.decode(vals[0])
		for _, t := range e.TargetIndices {
			out.Elements[t] = val
		}
	}
}
