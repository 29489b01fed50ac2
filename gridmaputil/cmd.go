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

// Package gridmaputil holds the command-line interface for Gridmap.
package gridmaputil

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/gridmap"
	"github.com/spatialmodel/gridmap/cdm"
	"github.com/spatialmodel/gridmap/wms"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Gridmap.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "data",
			usage: `
              data specifies the NetCDF file holding the gridded data.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "variable",
			usage: `
              variable specifies the name of the variable to render.`,
			shorthand:  "v",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "bbox",
			usage: `
              bbox specifies the bounding box of the output image as
              minx,miny,maxx,maxy in the output coordinate system. The
              default covers the whole globe.`,
			defaultVal: "-180,-90,180,90",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "width",
			usage: `
              width specifies the output image width in pixels.`,
			defaultVal: 1024,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "height",
			usage: `
              height specifies the output image height in pixels.`,
			defaultVal: 512,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "time",
			usage: `
              time specifies the time step index to render.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "level",
			usage: `
              level specifies the vertical level index to render.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "scale",
			usage: `
              scale specifies the color scale range as min,max. The
              default scales to the range of the rendered data.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the PNG file to write.`,
			shorthand:  "o",
			defaultVal: "map.png",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "addr",
			usage: `
              addr specifies the address for the server to listen on.`,
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "cachesize",
			usage: `
              cachesize specifies the maximum number of rendered tiles to
              keep in memory.`,
			defaultVal: 256,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDMAP")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(renderCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridmap: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridmap",
	Short: "Remap and render gridded geospatial data.",
	Long: `Gridmap reads gridded data from NetCDF files, remaps it between
coordinate grids, and renders it as map images.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'GRIDMAP_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Gridmap.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Gridmap v%s\n", gridmap.Version)
	},
	DisableAutoGenTag: true,
}

// renderCmd renders one variable to a PNG file.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a variable to a PNG image.",
	Long: `render reads a variable from a NetCDF file, remaps it onto a regular
latitude-longitude image grid, and writes the result as a PNG image.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bbox, err := parseBounds(Cfg.GetString("bbox"))
		if err != nil {
			return err
		}
		scaleMin, scaleMax, err := parseScale(Cfg.GetString("scale"))
		if err != nil {
			return err
		}
		return Render(
			cmd.Context(),
			os.ExpandEnv(Cfg.GetString("data")),
			Cfg.GetString("variable"),
			os.ExpandEnv(Cfg.GetString("output")),
			bbox,
			Cfg.GetInt("width"), Cfg.GetInt("height"),
			Cfg.GetInt("time"), Cfg.GetInt("level"),
			scaleMin, scaleMax,
		)
	},
	DisableAutoGenTag: true,
}

// serveCmd runs the map image server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve map images over HTTP.",
	Long: `serve starts an HTTP server answering GetMap and GetLegendGraphic
requests for the variables in a NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Serve(
			os.ExpandEnv(Cfg.GetString("data")),
			Cfg.GetString("addr"),
			Cfg.GetInt("cachesize"),
		)
	},
	DisableAutoGenTag: true,
}

// parseBounds parses a minx,miny,maxx,maxy bounding box.
func parseBounds(s string) (*geom.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("gridmap: bbox must be minx,miny,maxx,maxy; have %q", s)
	}
	var v [4]float64
	for k, p := range parts {
		f, err := cast.ToFloat64E(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("gridmap: invalid bbox %q: %v", s, err)
		}
		v[k] = f
	}
	return &geom.Bounds{
		Min: geom.Point{X: v[0], Y: v[1]},
		Max: geom.Point{X: v[2], Y: v[3]},
	}, nil
}

// parseScale parses an optional min,max color scale range; empty means
// automatic scaling.
func parseScale(s string) (min, max float64, err error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("gridmap: scale must be min,max; have %q", s)
	}
	if min, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, fmt.Errorf("gridmap: invalid scale %q: %v", s, err)
	}
	if max, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, fmt.Errorf("gridmap: invalid scale %q: %v", s, err)
	}
	return min, max, nil
}

// Serve starts the map image server; it only returns on failure.
func Serve(dataFile, addr string, cacheSize int) error {
	logger := logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})

	ds, err := cdm.OpenFile(dataFile)
	if err != nil {
		return err
	}
	defer ds.Close()

	s := wms.NewServer(ds, cacheSize)
	s.Log = logger

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	logger.WithFields(logrus.Fields{
		"addr": addr,
		"data": dataFile,
	}).Info("gridmap: serving maps")
	return srv.ListenAndServe()
}
