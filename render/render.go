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

// Package render paints remapped raster values as images: a color-mapped
// raster for map tiles, with a drawable legend. Positions with no data
// are fully transparent.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/ctessum/geom/carto"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// A Painter colors values on a fixed scale. Build one per request (or
// per layer, to keep the scale stable across tiles) and use it for both
// the raster and its legend.
type Painter struct {
	cmap     *carto.ColorMap
	min, max float64
}

// NewPainter creates a painter with the scale range [scaleMin, scaleMax].
// If scaleMin >= scaleMax the range is taken from the finite values in
// vals instead. The color map interpolation is linear.
func NewPainter(vals []float64, scaleMin, scaleMax float64) *Painter {
	if scaleMin >= scaleMax {
		scaleMin, scaleMax = math.Inf(1), math.Inf(-1)
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			scaleMin = math.Min(scaleMin, v)
			scaleMax = math.Max(scaleMax, v)
		}
		if scaleMin > scaleMax { // no finite data
			scaleMin, scaleMax = 0, 1
		}
		if scaleMin == scaleMax {
			scaleMax = scaleMin + 1
		}
	}
	cmap := carto.NewColorMap(carto.Linear)
	cmap.AddArray([]float64{scaleMin, scaleMax})
	cmap.Set()
	return &Painter{cmap: cmap, min: scaleMin, max: scaleMax}
}

// Range returns the painter's scale range.
func (p *Painter) Range() (min, max float64) { return p.min, p.max }

// Paint colors the width×height raster vals (row-major, row 0 at the
// top) on the painter's scale. NaN values become fully transparent
// pixels; finite values are clamped into the scale range.
func (p *Painter) Paint(vals []float64, width, height int) (*image.NRGBA, error) {
	if len(vals) != width*height {
		return nil, fmt.Errorf("render: %d values cannot fill a %d×%d raster", len(vals), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := vals[y*width+x]
			if math.IsNaN(v) {
				continue // transparent
			}
			v = math.Min(math.Max(v, p.min), p.max)
			img.SetNRGBA(x, y, p.cmap.GetColor(v))
		}
	}
	return img, nil
}

// legend proportions follow the usual wide-and-short strip layout.
const (
	legendWidth  = 6.2 * vg.Inch
	legendHeight = legendWidth * 0.1067
)

// Legend draws a horizontal color scale annotated with the given label
// and writes it to w as a PNG image.
func (p *Painter) Legend(w io.Writer, label string) error {
	p.cmap.LegendWidth = legendWidth
	p.cmap.LegendHeight = legendHeight
	p.cmap.LineWidth = 0.5
	p.cmap.FontSize = 8

	c := vgimg.New(legendWidth, legendHeight)
	dc := draw.New(c)
	if err := p.cmap.Legend(&dc, label); err != nil {
		return fmt.Errorf("render: drawing legend: %v", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("render: encoding legend: %v", err)
	}
	return nil
}

// WritePNG encodes img to w.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("render: encoding image: %v", err)
	}
	return nil
}

// Transparent returns a fully transparent width×height image, the
// rendering of a request whose footprint misses the data entirely.
func Transparent(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}
