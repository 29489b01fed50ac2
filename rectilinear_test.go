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
	"testing"

	"github.com/ctessum/geom"
)

func TestReferenceableAxis_NearestIndex(t *testing.T) {
	a := NewAxis("lon", []float64{10, 20, 30, 40}, false)
	tests := []struct {
		v    float64
		want int
	}{
		{10, 0},
		{14, 0},
		{16, 1},
		{40, 3},
		{44, 3},  // inside the half-spacing margin
		{46, -1}, // outside it
		{4, -1},
		{-300, -1}, // no wrap on a non-longitude axis
	}
	for _, test := range tests {
		if have := a.NearestIndex(test.v); have != test.want {
			t.Errorf("NearestIndex(%v): want %d, have %d", test.v, test.want, have)
		}
	}
}

func TestReferenceableAxis_descending(t *testing.T) {
	a := NewAxis("lat", []float64{60, 50, 40, 30}, false)
	tests := []struct {
		v    float64
		want int
	}{
		{60, 0},
		{52, 1},
		{30, 3},
		{26, 3},
		{20, -1},
	}
	for _, test := range tests {
		if have := a.NearestIndex(test.v); have != test.want {
			t.Errorf("NearestIndex(%v): want %d, have %d", test.v, test.want, have)
		}
	}
}

func TestReferenceableAxis_wrap(t *testing.T) {
	a := NewRegularAxis("lon", -180, 1, 360, true)
	tests := []struct {
		v    float64
		want int
	}{
		{-180, 0},
		{179, 359},
		{180, 0},   // wraps to -180
		{360, 180}, // wraps to 0
		{-360, 180},
	}
	for _, test := range tests {
		if have := a.NearestIndex(test.v); have != test.want {
			t.Errorf("NearestIndex(%v): want %d, have %d", test.v, test.want, have)
		}
	}
}

func TestNewRegularGrid(t *testing.T) {
	b := &geom.Bounds{Min: geom.Point{X: -10, Y: 40}, Max: geom.Point{X: 10, Y: 50}}
	g, err := NewRegularGrid(b, 4, 5, false, WGS84())
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 20, g.Len(); want != have {
		t.Fatalf("Len: want %d, have %d", want, have)
	}
	if want, have := (geom.Point{X: -7.5, Y: 41}), g.Coordinates(0, 0); want != have {
		t.Errorf("Coordinates(0, 0): want %v, have %v", want, have)
	}
	if want, have := (geom.Point{X: 7.5, Y: 49}), g.Coordinates(3, 4); want != have {
		t.Errorf("Coordinates(3, 4): want %v, have %v", want, have)
	}
	if have := g.Bounds(); *have != *b {
		t.Errorf("Bounds: want %v, have %v", b, have)
	}

	i, j, ok := g.NearestCell(-9, 49.5)
	if !ok || i != 0 || j != 4 {
		t.Errorf("NearestCell(-9, 49.5) = (%d, %d, %v), want (0, 4, true)", i, j, ok)
	}
	if _, _, ok := g.NearestCell(30, 45); ok {
		t.Error("NearestCell(30, 45) matched outside the grid")
	}
}

func TestNewRegularGrid_yDescending(t *testing.T) {
	// Image rasters store row 0 at the top.
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 4, Y: 4}}
	g, err := NewRegularGrid(b, 4, 4, true, WGS84())
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 3.5, g.Coordinates(0, 0).Y; want != have {
		t.Errorf("top row latitude: want %v, have %v", want, have)
	}
	if want, have := 0.5, g.Coordinates(0, 3).Y; want != have {
		t.Errorf("bottom row latitude: want %v, have %v", want, have)
	}
}
