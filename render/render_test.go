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

package render

import (
	"bytes"
	"math"
	"testing"
)

func TestPainter_Paint(t *testing.T) {
	vals := []float64{0, 1, math.NaN(), 0.5}
	p := NewPainter(vals, 0, 0) // auto range
	if min, max := p.Range(); min != 0 || max != 1 {
		t.Errorf("auto range: have [%v, %v], want [0, 1]", min, max)
	}

	img, err := p.Paint(vals, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds: %v", b)
	}
	if a := img.NRGBAAt(0, 1).A; a != 0 {
		t.Errorf("NaN pixel alpha: want 0, have %d", a)
	}
	for _, xy := range [][2]int{{0, 0}, {1, 0}, {1, 1}} {
		if a := img.NRGBAAt(xy[0], xy[1]).A; a != 255 {
			t.Errorf("pixel (%d, %d) alpha: want 255, have %d", xy[0], xy[1], a)
		}
	}
	// Different values get different colors.
	if img.NRGBAAt(0, 0) == img.NRGBAAt(1, 0) {
		t.Error("scale extremes share a color")
	}

	if _, err := p.Paint(vals, 3, 2); err == nil {
		t.Error("want error for mismatched raster size")
	}
}

func TestPainter_fixedRangeClamps(t *testing.T) {
	p := NewPainter(nil, 0, 10)
	img, err := p.Paint([]float64{-5, 15}, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Out-of-range values clamp to the scale ends rather than failing.
	if img.NRGBAAt(0, 0).A != 255 || img.NRGBAAt(1, 0).A != 255 {
		t.Error("clamped pixels not painted")
	}
}

func TestPainter_allNaN(t *testing.T) {
	vals := []float64{math.NaN(), math.NaN()}
	p := NewPainter(vals, 0, 0)
	img, err := p.Paint(vals, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 2; x++ {
		if a := img.NRGBAAt(x, 0).A; a != 0 {
			t.Errorf("pixel %d alpha: want 0, have %d", x, a)
		}
	}
}

func TestLegend(t *testing.T) {
	p := NewPainter(nil, 0, 100)
	var buf bytes.Buffer
	if err := p.Legend(&buf, "temperature (K)"); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("legend output is not a PNG")
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, Transparent(4, 4)); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}
