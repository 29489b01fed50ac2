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

package gridmaputil

import (
	"context"
	"fmt"
	"os"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/gridmap"
	"github.com/spatialmodel/gridmap/cdm"
	"github.com/spatialmodel/gridmap/render"
)

// Render reads variable name from the NetCDF file dataFile, remaps it
// onto a width x height regular latitude-longitude grid covering bbox,
// and writes the result to outFile as a PNG image. A scale range of
// [0, 0) scales the colors to the range of the rendered data.
func Render(ctx context.Context, dataFile, name, outFile string, bbox *geom.Bounds, width, height, tIndex, zIndex int, scaleMin, scaleMax float64) error {
	if dataFile == "" {
		return fmt.Errorf("gridmap: no data file specified")
	}
	if name == "" {
		return fmt.Errorf("gridmap: no variable specified")
	}

	ds, err := cdm.OpenFile(dataFile)
	if err != nil {
		return err
	}
	defer ds.Close()

	source, err := ds.Grid(ctx, name)
	if err != nil {
		return err
	}
	target, err := gridmap.NewRegularGrid(bbox, width, height, true, gridmap.WGS84())
	if err != nil {
		return err
	}
	pm, err := gridmap.NewPixelMap(source, target)
	if err != nil {
		return err
	}

	img := render.Transparent(width, height)
	if !pm.Empty() {
		vals, err := ds.ReadPixelMap(name, pm, tIndex, zIndex, width*height, cdm.StrategyAuto)
		if err != nil {
			return err
		}
		painter := render.NewPainter(vals.Elements, scaleMin, scaleMax)
		if img, err = painter.Paint(vals.Elements, width, height); err != nil {
			return err
		}
		min, max := painter.Range()
		logrus.WithFields(logrus.Fields{
			"variable": name,
			"min":      min,
			"max":      max,
			"pixels":   pm.Len(),
		}).Info("gridmap: rendered variable")
	}

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("gridmap: creating output file: %v", err)
	}
	if err := render.WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
