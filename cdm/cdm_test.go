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
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridmap"
)

const (
	testNx, testNy, testNt = 6, 4, 2

	testScale  = 0.5
	testOffset = 10.0
	testFill   = -999.0
)

// rawTemp is the packed value stored for cell (i, j) at time t.
func rawTemp(t, j, i int) float32 {
	return float32(t*100 + j*10 + i)
}

// writeTestFile builds a small NetCDF file with 1D coordinate variables
// and a packed (time, lat, lon) variable. Cell (3, 2) at time 1 holds
// the fill value.
func writeTestFile(t *testing.T) string {
	t.Helper()
	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{testNt, testNy, testNx})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("temp", []string{"time", "lat", "lon"}, []float32{0})
	h.AddAttribute("temp", "scale_factor", []float64{testScale})
	h.AddAttribute("temp", "add_offset", []float64{testOffset})
	h.AddAttribute("temp", "_FillValue", []float32{testFill})
	h.Define()

	path := filepath.Join(t.TempDir(), "test.nc")
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}

	lons := make([]float64, testNx)
	for i := range lons {
		lons[i] = float64(i) + 0.5
	}
	lats := make([]float64, testNy)
	for j := range lats {
		lats[j] = float64(j) + 0.5
	}
	temps := make([]float32, testNt*testNy*testNx)
	for tt := 0; tt < testNt; tt++ {
		for j := 0; j < testNy; j++ {
			for i := 0; i < testNx; i++ {
				temps[(tt*testNy+j)*testNx+i] = rawTemp(tt, j, i)
			}
		}
	}
	temps[(1*testNy+2)*testNx+3] = testFill

	for _, w := range []struct {
		name string
		data interface{}
	}{
		{"lon", lons}, {"lat", lats}, {"temp", temps},
	} {
		if _, err := f.Writer(w.name, nil, nil).Write(w.data); err != nil && err != io.EOF {
			t.Fatalf("writing %s: %v", w.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDataset_Variable(t *testing.T) {
	d, err := OpenFile(writeTestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	v, err := d.Variable("temp")
	if err != nil {
		t.Fatal(err)
	}
	if v.Nx() != testNx || v.Ny() != testNy || v.Nt() != testNt || v.Nz() != 1 {
		t.Errorf("shape: have nx=%d ny=%d nt=%d nz=%d", v.Nx(), v.Ny(), v.Nt(), v.Nz())
	}
	if v.scale != testScale || v.offset != testOffset {
		t.Errorf("packing: have scale=%v offset=%v", v.scale, v.offset)
	}
	if math.IsNaN(v.decode(4)) || v.decode(4) != 4*testScale+testOffset {
		t.Errorf("decode(4) = %v", v.decode(4))
	}
	if !math.IsNaN(v.decode(testFill)) {
		t.Errorf("decode(fill) = %v, want NaN", v.decode(testFill))
	}

	if _, err := d.Variable("nosuch"); err == nil {
		t.Error("want error for missing variable")
	}
	if _, err := d.Variable("lon"); err == nil {
		t.Error("want error for variable without horizontal dimensions")
	}
}

func TestDataset_Grid(t *testing.T) {
	d, err := OpenFile(writeTestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	g, err := d.Grid(context.Background(), "temp")
	if err != nil {
		t.Fatal(err)
	}
	rg, ok := g.(*gridmap.RectilinearGrid)
	if !ok {
		t.Fatalf("grid type %T, want *gridmap.RectilinearGrid", g)
	}
	if want, have := testNx*testNy, rg.Len(); want != have {
		t.Errorf("Len: want %d, have %d", want, have)
	}
	if p := rg.Coordinates(0, 0); p.X != 0.5 || p.Y != 0.5 {
		t.Errorf("Coordinates(0, 0) = %v", p)
	}
}

func TestDataset_ReadPixelMap(t *testing.T) {
	d, err := OpenFile(writeTestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	g, err := d.Grid(context.Background(), "temp")
	if err != nil {
		t.Fatal(err)
	}
	src := g.(*gridmap.RectilinearGrid)
	pm, err := gridmap.NewPixelMap(src, src) // identity map
	if err != nil {
		t.Fatal(err)
	}

	for _, strategy := range []Strategy{StrategyBoundingBox, StrategyCellByCell, StrategyAuto} {
		vals, err := d.ReadPixelMap("temp", pm, 1, 0, src.Len(), strategy)
		if err != nil {
			t.Fatalf("%v: %v", strategy, err)
		}
		for j := 0; j < testNy; j++ {
			for i := 0; i < testNx; i++ {
				have := vals.Elements[j*testNx+i]
				if i == 3 && j == 2 {
					if !math.IsNaN(have) {
						t.Errorf("%v: cell (%d, %d): want NaN fill, have %v", strategy, i, j, have)
					}
					continue
				}
				want := float64(rawTemp(1, j, i))*testScale + testOffset
				if have != want {
					t.Errorf("%v: cell (%d, %d): want %v, have %v", strategy, i, j, want, have)
				}
			}
		}
	}

	if _, err := d.ReadPixelMap("temp", pm, testNt, 0, src.Len(), StrategyAuto); err == nil {
		t.Error("want error for out-of-range time index")
	}
}

func TestDataset_ReadPixelMap_empty(t *testing.T) {
	d, err := OpenFile(writeTestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	g, err := d.Grid(context.Background(), "temp")
	if err != nil {
		t.Fatal(err)
	}
	src := g.(*gridmap.RectilinearGrid)
	tgt := gridmap.NewPointList(nil, gridmap.WGS84())
	pm, err := gridmap.NewPixelMap(src, tgt)
	if err != nil {
		t.Fatal(err)
	}
	vals, err := d.ReadPixelMap("temp", pm, 0, 0, 10, StrategyAuto)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range vals.Elements {
		if !math.IsNaN(v) {
			t.Errorf("element %d: want NaN, have %v", k, v)
		}
	}
}
