package surveyio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/core"
)

// defaultNoData is used when the header omits NODATA_value.
const defaultNoData = -9999

// ReadEsriASCII parses an ESRI ASCII grid into a bathymetry raster. Both
// the xllcorner/yllcorner and the xllcenter/yllcenter header forms are
// accepted.
func ReadEsriASCII(r io.Reader) (*core.BathymetryGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	g := &core.BathymetryGrid{NoDataValue: defaultNoData}
	var (
		header        = map[string]float64{}
		centred       bool
		line          int
		values        []float64
		headerDone    bool
		requiredNames = []string{"ncols", "nrows", "cellsize"}
	)

	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !headerDone {
			key := strings.ToLower(fields[0])
			if _, err := strconv.ParseFloat(key, 64); err != nil {
				if len(fields) != 2 {
					return nil, &ErrParse{Source: "bathymetry", Line: line, Err: fmt.Errorf("malformed header %q", sc.Text())}
				}
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, &ErrParse{Source: "bathymetry", Line: line, Field: key, Err: err}
				}
				if key == "xllcenter" || key == "yllcenter" {
					centred = true
				}
				header[key] = v
				continue
			}
			headerDone = true
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ErrParse{Source: "bathymetry", Line: line, Err: err}
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bathymetry: %w", err)
	}

	for _, name := range requiredNames {
		if _, ok := header[name]; !ok {
			return nil, fmt.Errorf("bathymetry: header %w %q", ErrMissingColumn, name)
		}
	}
	g.Cols = int(header["ncols"])
	g.Rows = int(header["nrows"])
	g.CellSize = header["cellsize"]
	if v, ok := header["nodata_value"]; ok {
		g.NoDataValue = v
	}
	x, y := header["xllcorner"], header["yllcorner"]
	if centred {
		x = header["xllcenter"] - g.CellSize/2
		y = header["yllcenter"] - g.CellSize/2
	}
	g.Corner = orb.Point{x, y}

	if g.Cols <= 0 || g.Rows <= 0 {
		return nil, fmt.Errorf("bathymetry: bad dimensions %dx%d", g.Cols, g.Rows)
	}
	if len(values) != g.Cols*g.Rows {
		return nil, fmt.Errorf("bathymetry: %d values, header says %dx%d", len(values), g.Cols, g.Rows)
	}
	g.Data = make([][]float64, g.Rows)
	for r := range g.Rows {
		g.Data[r] = values[r*g.Cols : (r+1)*g.Cols]
	}
	return g, g.Validate()
}
