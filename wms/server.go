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

// Package wms serves map images of NetCDF variables over HTTP. It
// implements the GetMap and GetLegendGraphic operations of the Web Map
// Service request style: each GetMap request names a variable, a
// bounding box, an output size and a coordinate reference system, and
// receives a PNG with data-free pixels transparent.
package wms

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/golang/groupcache/lru"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/gridmap"
	"github.com/spatialmodel/gridmap/cdm"
	"github.com/spatialmodel/gridmap/render"
)

// maxImageSize bounds requested image dimensions.
const maxImageSize = 4096

// A Server renders map images from one dataset. Rendered tiles are
// cached by their full request parameters.
type Server struct {
	Data *cdm.Dataset

	// Log receives request logging. The default is the logrus standard
	// logger.
	Log logrus.FieldLogger

	mx    sync.Mutex
	tiles *lru.Cache
}

// NewServer creates a server for the given dataset, caching up to
// tileCacheSize rendered images (0 disables the bound).
func NewServer(data *cdm.Dataset, tileCacheSize int) *Server {
	return &Server{
		Data:  data,
		Log:   logrus.StandardLogger(),
		tiles: lru.New(tileCacheSize),
	}
}

// ServeHTTP dispatches on the REQUEST query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	request := r.URL.Query().Get("REQUEST")
	switch request {
	case "GetMap":
		err = s.getMap(w, r)
	case "GetLegendGraphic":
		err = s.getLegendGraphic(w, r)
	default:
		err = badRequestError{fmt.Errorf("unsupported REQUEST %q", request)}
	}
	entry := s.Log.WithFields(logrus.Fields{
		"request":  request,
		"query":    r.URL.RawQuery,
		"duration": time.Since(start),
	})
	if err != nil {
		if _, bad := err.(badRequestError); bad {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		entry.WithField("error", err).Error("wms: request failed")
		return
	}
	entry.Debug("wms: request served")
}

// badRequestError marks client errors so they map to HTTP 400.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }

type mapRequest struct {
	layer         string
	bbox          *geom.Bounds
	width, height int
	crs           *proj.SR
	timeIndex     int
	levelIndex    int
	scaleMin      float64
	scaleMax      float64
}

func parseMapRequest(r *http.Request) (*mapRequest, error) {
	q := r.URL.Query()
	req := &mapRequest{layer: q.Get("LAYERS")}
	if req.layer == "" {
		req.layer = q.Get("LAYER")
	}
	if req.layer == "" {
		return nil, fmt.Errorf("missing LAYERS parameter")
	}

	var err error
	if req.bbox, err = parseBBox(q.Get("BBOX")); err != nil {
		return nil, err
	}
	if req.width, err = parseSize(q.Get("WIDTH")); err != nil {
		return nil, fmt.Errorf("WIDTH: %v", err)
	}
	if req.height, err = parseSize(q.Get("HEIGHT")); err != nil {
		return nil, fmt.Errorf("HEIGHT: %v", err)
	}
	crsName := q.Get("CRS")
	if crsName == "" {
		crsName = q.Get("SRS")
	}
	if req.crs, err = CRS(crsName); err != nil {
		return nil, err
	}
	if req.timeIndex, err = parseIndex(q.Get("TIME")); err != nil {
		return nil, fmt.Errorf("TIME: %v", err)
	}
	if req.levelIndex, err = parseIndex(q.Get("ELEVATION")); err != nil {
		return nil, fmt.Errorf("ELEVATION: %v", err)
	}
	if req.scaleMin, req.scaleMax, err = parseScaleRange(q.Get("COLORSCALERANGE")); err != nil {
		return nil, err
	}
	return req, nil
}

func parseBBox(s string) (*geom.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("BBOX must be minx,miny,maxx,maxy; have %q", s)
	}
	var v [4]float64
	for k, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("BBOX: %v", err)
		}
		v[k] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return nil, fmt.Errorf("BBOX %q is not a valid box", s)
	}
	return &geom.Bounds{
		Min: geom.Point{X: v[0], Y: v[1]},
		Max: geom.Point{X: v[2], Y: v[3]},
	}, nil
}

func parseSize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > maxImageSize {
		return 0, fmt.Errorf("size %d outside [1, %d]", n, maxImageSize)
	}
	return n, nil
}

// parseIndex parses an optional integer index parameter; empty means 0.
func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseScaleRange parses "min,max"; empty means automatic scaling.
func parseScaleRange(s string) (min, max float64, err error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("COLORSCALERANGE must be min,max; have %q", s)
	}
	if min, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, fmt.Errorf("COLORSCALERANGE: %v", err)
	}
	if max, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, fmt.Errorf("COLORSCALERANGE: %v", err)
	}
	return min, max, nil
}

var (
	mercatorOnce sync.Once
	mercator     *proj.SR
	mercatorErr  error
)

// CRS resolves a WMS coordinate reference system name. Bounding box
// coordinates are interpreted in x, y (longitude, latitude) order for
// all systems.
func CRS(name string) (*proj.SR, error) {
	switch strings.ToUpper(name) {
	case "", "CRS:84", "EPSG:4326", "WGS84":
		return gridmap.WGS84(), nil
	case "EPSG:3857", "EPSG:900913":
		mercatorOnce.Do(func() {
			mercator, mercatorErr = proj.Parse(
				"+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs")
		})
		return mercator, mercatorErr
	default:
		return nil, fmt.Errorf("unsupported coordinate reference system %q", name)
	}
}

func (s *Server) getMap(w http.ResponseWriter, r *http.Request) error {
	req, err := parseMapRequest(r)
	if err != nil {
		return badRequestError{err}
	}

	key := r.URL.RawQuery
	s.mx.Lock()
	cached, ok := s.tiles.Get(key)
	s.mx.Unlock()
	if ok {
		return writeImage(w, cached.([]byte))
	}

	source, err := s.Data.Grid(r.Context(), req.layer)
	if err != nil {
		return err
	}
	// Row 0 of the image is the northernmost row.
	target, err := gridmap.NewRegularGrid(req.bbox, req.width, req.height, true, req.crs)
	if err != nil {
		return err
	}
	pm, err := gridmap.NewPixelMap(source, target)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if pm.Empty() {
		// No overlap between the request and the data: a transparent
		// tile, not an error.
		if err := render.WritePNG(&buf, render.Transparent(req.width, req.height)); err != nil {
			return err
		}
	} else {
		vals, err := s.Data.ReadPixelMap(req.layer, pm, req.timeIndex, req.levelIndex,
			req.width*req.height, cdm.StrategyAuto)
		if err != nil {
			return err
		}
		painter := render.NewPainter(vals.Elements, req.scaleMin, req.scaleMax)
		img, err := painter.Paint(vals.Elements, req.width, req.height)
		if err != nil {
			return err
		}
		if err := render.WritePNG(&buf, img); err != nil {
			return err
		}
	}

	s.mx.Lock()
	s.tiles.Add(key, buf.Bytes())
	s.mx.Unlock()
	return writeImage(w, buf.Bytes())
}

func (s *Server) getLegendGraphic(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	layer := q.Get("LAYER")
	if layer == "" {
		layer = q.Get("LAYERS")
	}
	if layer == "" {
		return badRequestError{fmt.Errorf("missing LAYER parameter")}
	}
	min, max, err := parseScaleRange(q.Get("COLORSCALERANGE"))
	if err != nil {
		return badRequestError{err}
	}
	if min >= max {
		min, max = 0, 1
	}
	label := layer
	if units := s.Data.AttrString(layer, "units"); units != "" {
		label = fmt.Sprintf("%s (%s)", layer, units)
	}

	var buf bytes.Buffer
	if err := render.NewPainter(nil, min, max).Legend(&buf, label); err != nil {
		return err
	}
	return writeImage(w, buf.Bytes())
}

func writeImage(w http.ResponseWriter, b []byte) error {
	w.Header().Set("Content-Type", "image/png")
	_, err := w.Write(b)
	return err
}
