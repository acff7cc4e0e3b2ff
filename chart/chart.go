// Package chart renders aggregated pollutant series.
package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

const (
	width  = 10 * vg.Inch
	height = 4 * vg.Inch
)

// MeanSeries builds a line chart of points against time.
func MeanSeries(points []pipeline.Point, pollutant string) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errors.New("no points to plot")
	}
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.TS.Unix())
		xys[i].Y = pt.Mean
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean %s concentration", pollutant)
	p.X.Label.Text = "date"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("build line: %w", err)
	}
	line.LineStyle.Width = vg.Points(0.5)
	p.Add(line)
	return p, nil
}

// SaveMeanSeries renders points to path. The image format follows the
// file extension (png, svg, pdf, ...).
func SaveMeanSeries(points []pipeline.Point, pollutant, path string) error {
	p, err := MeanSeries(points, pollutant)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}
