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

// Package cdm reads gridded geophysical variables from NetCDF files and
// extracts the cells named by a PixelMap, reading each required cell
// exactly once using a strategy chosen from the map's shape.
package cdm

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridmap"
)

// A Dataset is an open NetCDF file with its variables classified onto
// spatial and temporal axes.
type Dataset struct {
	f      *cdf.File
	closer *os.File
}

// Open wraps an already-open NetCDF stream.
func Open(rw cdf.ReaderWriterAt) (*Dataset, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("cdm: opening dataset: %v", err)
	}
	return &Dataset{f: f}, nil
}

// OpenFile opens the NetCDF file at path. The caller must Close the
// returned Dataset.
func OpenFile(path string) (*Dataset, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cdm: opening dataset: %v", err)
	}
	d, err := Open(ff)
	if err != nil {
		ff.Close()
		return nil, err
	}
	d.closer = ff
	return d, nil
}

// Close releases the underlying file, if this Dataset owns one.
func (d *Dataset) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Variables returns the names of the dataset's variables.
func (d *Dataset) Variables() []string { return d.f.Header.Variables() }

// An axisKind classifies a NetCDF dimension.
type axisKind int

const (
	axisUnknown axisKind = iota
	axisX
	axisY
	axisZ
	axisT
)

// classifyDim maps common dimension naming conventions onto axes.
func classifyDim(name string) axisKind {
	switch n := strings.ToLower(name); n {
	case "x", "lon", "longitude", "west_east", "col", "cols", "ni", "xc", "xlong":
		return axisX
	case "y", "lat", "latitude", "south_north", "row", "rows", "nj", "yc", "xlat":
		return axisY
	case "z", "lev", "level", "levels", "layer", "bottom_top", "height", "depth", "plev":
		return axisZ
	case "t", "time", "record", "date":
		return axisT
	default:
		return axisUnknown
	}
}

// A Variable describes one gridded variable: its dimension layout and
// the packing attributes needed to decode stored values.
type Variable struct {
	Name  string
	dims  []string
	shape []int

	// Positions of the classified axes in dims, or -1 when absent.
	xDim, yDim, zDim, tDim int

	scale, offset float64
	fill          []float64
}

// Variable classifies the named variable's dimensions. The x axis must
// be the variable's innermost (fastest-varying) dimension and y the next
// one out, the usual NetCDF layout for map data.
func (d *Dataset) Variable(name string) (*Variable, error) {
	dims := d.f.Header.Dimensions(name)
	if dims == nil {
		return nil, fmt.Errorf("cdm: no variable %q in dataset", name)
	}
	v := &Variable{
		Name:  name,
		dims:  dims,
		shape: d.f.Header.Lengths(name),
		xDim:  -1, yDim: -1, zDim: -1, tDim: -1,
		scale: 1,
	}
	for k, dim := range dims {
		switch classifyDim(dim) {
		case axisX:
			v.xDim = k
		case axisY:
			v.yDim = k
		case axisZ:
			v.zDim = k
		case axisT:
			v.tDim = k
		}
	}
	if v.xDim < 0 || v.yDim < 0 {
		return nil, fmt.Errorf("cdm: variable %q has no recognizable horizontal dimensions (have %v)", name, dims)
	}
	if v.xDim != len(dims)-1 || v.yDim != len(dims)-2 {
		return nil, fmt.Errorf("cdm: variable %q: expected dimension order (..., y, x), have %v", name, dims)
	}
	if s, ok := d.attrFloat(name, "scale_factor"); ok {
		v.scale = s
	}
	if o, ok := d.attrFloat(name, "add_offset"); ok {
		v.offset = o
	}
	for _, attr := range []string{"_FillValue", "missing_value"} {
		if f, ok := d.attrFloat(name, attr); ok {
			v.fill = append(v.fill, f)
		}
	}
	return v, nil
}

// Shape returns the variable's dimension lengths.
func (v *Variable) Shape() []int { return v.shape }

// Nx returns the length of the x dimension.
func (v *Variable) Nx() int { return v.shape[v.xDim] }

// Ny returns the length of the y dimension.
func (v *Variable) Ny() int { return v.shape[v.yDim] }

// Nz returns the length of the vertical dimension, or 1 if there is none.
func (v *Variable) Nz() int {
	if v.zDim < 0 {
		return 1
	}
	return v.shape[v.zDim]
}

// Nt returns the length of the time dimension, or 1 if there is none.
func (v *Variable) Nt() int {
	if v.tDim < 0 {
		return 1
	}
	return v.shape[v.tDim]
}

// decode unpacks a stored value, mapping fill values to NaN.
func (v *Variable) decode(raw float64) float64 {
	for _, f := range v.fill {
		if raw == f {
			return math.NaN()
		}
	}
	return raw*v.scale + v.offset
}

// attrFloat reads a numeric attribute. NetCDF stores numeric attributes
// as single-element slices.
func (d *Dataset) attrFloat(v, name string) (float64, bool) {
	switch a := d.f.Header.GetAttribute(v, name).(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int8:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// AttrString reads a string attribute of a variable; v may be "" for a
// global attribute.
func (d *Dataset) AttrString(v, name string) string {
	if s, ok := d.f.Header.GetAttribute(v, name).(string); ok {
		return s
	}
	return ""
}

// toFloat64s converts a typed slice returned by the cdf reader into
// float64 values.
func toFloat64s(data interface{}) ([]float64, error) {
	switch a := data.(type) {
	case []float64:
		return a, nil
	case []float32:
		out := make([]float64, len(a))
		for k, x := range a {
			out[k] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(a))
		for k, x := range a {
			out[k] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(a))
		for k, x := range a {
			out[k] = float64(x)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(a))
		for k, x := range a {
			out[k] = float64(x)
		}
		return out, nil
	case []byte:
		out := make([]float64, len(a))
		for k, x := range a {
			out[k] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cdm: unsupported variable element type %T", data)
	}
}

// Grid builds the horizontal grid of the named variable from the
// dataset's coordinate variables. One-dimensional coordinate variables
// produce a rectilinear grid; two-dimensional longitude/latitude arrays
// produce a curvilinear grid with a cached spatial index.
func (d *Dataset) Grid(ctx context.Context, name string) (gridmap.HorizontalGrid, error) {
	v, err := d.Variable(name)
	if err != nil {
		return nil, err
	}
	xName, yName := v.dims[v.xDim], v.dims[v.yDim]

	xVals, xerr := d.coordValues1d(xName)
	yVals, yerr := d.coordValues1d(yName)
	if xerr == nil && yerr == nil {
		x := gridmap.NewAxis(xName, xVals, true)
		y := gridmap.NewAxis(yName, yVals, false)
		return gridmap.NewRectilinearGrid(x, y, gridmap.WGS84()), nil
	}

	lonName, latName, err := d.coordVars2d(xName, yName)
	if err != nil {
		return nil, fmt.Errorf("cdm: variable %q: no usable coordinates: %v", name, err)
	}
	lons, err := d.readAllFloat(lonName)
	if err != nil {
		return nil, err
	}
	lats, err := d.readAllFloat(latName)
	if err != nil {
		return nil, err
	}
	grid, err := gridmap.NewCurvilinearGridFromCenters(lons, lats, v.Nx(), v.Ny())
	if err != nil {
		return nil, fmt.Errorf("cdm: variable %q: %v", name, err)
	}
	return gridmap.GenerateLookupGrid(ctx, grid)
}

// coordValues1d reads a one-dimensional coordinate variable whose single
// dimension is itself, the NetCDF convention for rectilinear axes.
func (d *Dataset) coordValues1d(name string) ([]float64, error) {
	dims := d.f.Header.Dimensions(name)
	if len(dims) != 1 || dims[0] != name {
		return nil, fmt.Errorf("cdm: %q is not a coordinate variable", name)
	}
	return d.readAllFloat(name)
}

// coordVars2d finds two-dimensional longitude and latitude variables
// dimensioned (y, x).
func (d *Dataset) coordVars2d(xName, yName string) (lonName, latName string, err error) {
	for _, cand := range d.f.Header.Variables() {
		dims := d.f.Header.Dimensions(cand)
		if len(dims) != 2 || dims[0] != yName || dims[1] != xName {
			continue
		}
		switch classifyDim(cand) {
		case axisX:
			lonName = cand
		case axisY:
			latName = cand
		}
	}
	if lonName == "" || latName == "" {
		return "", "", fmt.Errorf("no 2D longitude/latitude variables over (%s, %s)", yName, xName)
	}
	return lonName, latName, nil
}

// readAllFloat reads a whole variable as float64 values.
func (d *Dataset) readAllFloat(name string) ([]float64, error) {
	r := d.f.Reader(name, nil, nil)
	if r == nil {
		return nil, fmt.Errorf("cdm: no variable %q in dataset", name)
	}
	n := 1
	for _, l := range d.f.Header.Lengths(name) {
		n *= l
	}
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("cdm: reading %q: %v", name, err)
	}
	return toFloat64s(buf)
}
