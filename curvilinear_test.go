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
	"math"
	"testing"

	"github.com/ctessum/geom"
)

func TestNewCurvilinearGrid(t *testing.T) {
	g := regularVertexGrid(t, 3)
	if want, have := 9, g.Size(); want != have {
		t.Fatalf("size: want %d, have %d", want, have)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			c := g.Cell(i, j)
			want := geom.Point{X: float64(i) + 0.5, Y: float64(j) + 0.5}
			if c.Centre != want {
				t.Errorf("cell (%d, %d) center: want %v, have %v", i, j, want, c.Centre)
			}
			if !c.Contains(want) {
				t.Errorf("cell (%d, %d) does not contain its own center", i, j)
			}
			if c.Contains(geom.Point{X: want.X + 1.5, Y: want.Y}) {
				t.Errorf("cell (%d, %d) contains a point 1.5° east of its center", i, j)
			}
		}
	}
	if want, have := 1.0, g.MeanCellArea(); math.Abs(want-have) > 1e-12 {
		t.Errorf("mean cell area: want %v, have %v", want, have)
	}
}

func TestNewCurvilinearGrid_badShape(t *testing.T) {
	if _, err := NewCurvilinearGrid(make([]float64, 4), make([]float64, 4), 2, 2); err == nil {
		t.Error("want error for corner array of the wrong size")
	}
	if _, err := NewCurvilinearGrid(nil, nil, 0, 1); err == nil {
		t.Error("want error for zero-cell grid")
	}
}

func TestNewCurvilinearGridFromCenters(t *testing.T) {
	// Centers on a regular 1° mesh: derived corners must recover the
	// half-degree cell edges, including mirrored edges at the boundary.
	lons := []float64{0.5, 1.5, 2.5, 0.5, 1.5, 2.5, 0.5, 1.5, 2.5}
	lats := []float64{0.5, 0.5, 0.5, 1.5, 1.5, 1.5, 2.5, 2.5, 2.5}
	g, err := NewCurvilinearGridFromCenters(lons, lats, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			c := g.Cell(i, j)
			want := geom.Point{X: float64(i) + 0.5, Y: float64(j) + 0.5}
			if math.Abs(c.Centre.X-want.X) > 1e-12 || math.Abs(c.Centre.Y-want.Y) > 1e-12 {
				t.Errorf("cell (%d, %d) center: want %v, have %v", i, j, want, c.Centre)
			}
			if !c.Contains(geom.Point{X: want.X + 0.4, Y: want.Y - 0.4}) {
				t.Errorf("cell (%d, %d) missing interior point", i, j)
			}
		}
	}
}

func TestCell_antiMeridian(t *testing.T) {
	// 2×2 cells whose vertex longitudes straddle the anti-meridian:
	// cell (1, j) spans 179°E to 179°W.
	lons := []float64{
		177, 179, -179,
		177, 179, -179,
		177, 179, -179,
	}
	lats := []float64{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
	}
	g, err := NewCurvilinearGrid(lons, lats, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	c := g.Cell(1, 0)
	for _, lon := range []float64{180, -180, 179.5, -179.5} {
		if !c.Contains(geom.Point{X: lon, Y: 0.5}) {
			t.Errorf("cell spanning the anti-meridian does not contain lon %v", lon)
		}
	}
	if c.Contains(geom.Point{X: 178.5, Y: 0.5}) {
		t.Error("cell (1, 0) contains a point belonging to cell (0, 0)")
	}

	// The proxy distance must also wrap.
	d := c.DistanceSq(geom.Point{X: -179.9, Y: c.Centre.Y})
	if d > 1 {
		t.Errorf("wrapped distance too large: %v", d)
	}

	// The full lookup path must find the cell at the seam.
	ClearLookupGridCache()
	lg, err := GenerateLookupGrid(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	for _, lon := range []float64{180, -180} {
		i, j, ok := lg.NearestCell(lon, 0.5)
		if !ok || i != 1 || j != 0 {
			t.Errorf("NearestCell(%v, 0.5) = (%d, %d, %v), want (1, 0, true)", lon, i, j, ok)
		}
	}
}

func TestCell_masked(t *testing.T) {
	nv := 4
	lons := make([]float64, nv*nv)
	lats := make([]float64, nv*nv)
	for j := 0; j < nv; j++ {
		for i := 0; i < nv; i++ {
			lons[j*nv+i] = float64(i)
			lats[j*nv+i] = float64(j)
		}
	}
	// A NaN vertex masks the four cells sharing it.
	lons[1*nv+1] = math.NaN()
	g, err := NewCurvilinearGrid(lons, lats, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	masked := map[[2]int]bool{{0, 0}: true, {1, 0}: true, {0, 1}: true, {1, 1}: true}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			c := g.Cell(i, j)
			if want, have := !masked[[2]int{i, j}], c.Valid(); want != have {
				t.Errorf("cell (%d, %d) valid: want %v, have %v", i, j, want, have)
			}
			if !c.Valid() && c.Contains(geom.Point{X: float64(i) + 0.5, Y: float64(j) + 0.5}) {
				t.Errorf("masked cell (%d, %d) contains a point", i, j)
			}
		}
	}

	// Even a query at a masked cell's nominal center must never return
	// the masked cell.
	ClearLookupGridCache()
	lg, err := GenerateLookupGrid(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	for q := range masked {
		i, j, ok := lg.NearestCell(float64(q[0])+0.5, float64(q[1])+0.5)
		if ok && masked[[2]int{i, j}] {
			t.Errorf("query at masked cell (%d, %d) returned masked cell (%d, %d)", q[0], q[1], i, j)
		}
	}
}

func TestCurvilinearGrid_Key(t *testing.T) {
	a := regularVertexGrid(t, 3)
	b := regularVertexGrid(t, 3)
	if a.Key() != b.Key() {
		t.Error("grids with equal corners have different keys")
	}
	c := regularVertexGrid(t, 4)
	if a.Key() == c.Key() {
		t.Error("grids with different corners share a key")
	}
}

func TestCurvilinearGrid_Neighbors(t *testing.T) {
	g := regularVertexGrid(t, 3)
	tests := []struct {
		i, j, n int
	}{
		{0, 0, 2},
		{1, 0, 3},
		{1, 1, 4},
		{2, 2, 2},
	}
	for _, test := range tests {
		ns := g.Neighbors(g.Cell(test.i, test.j), nil)
		if len(ns) != test.n {
			t.Errorf("cell (%d, %d): want %d neighbors, have %d", test.i, test.j, test.n, len(ns))
		}
	}
}
