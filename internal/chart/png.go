package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/forest-guardian/lst-ndvi/internal/timeseries"
)

// RenderPNG saves a static chart of s to path. The x axis is time.
func RenderPNG(path string, s timeseries.Series, o Options) error {
	valid := s.ValidPoints()
	if len(valid) == 0 {
		return fmt.Errorf("series %s has no valid points", s.Product)
	}
	pointColor, err := parseColor(o.PointColor)
	if err != nil {
		return err
	}
	trendColor, err := parseColor(o.TrendColor)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.Y.Label.Text = s.Unit
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(valid))
	for i, pt := range valid {
		pts[i] = plotter.XY{X: float64(pt.Month.Unix()), Y: pt.Value}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(float64(o.PointSize) / 2)
	p.Add(sc)
	p.Legend.Add(s.Product, sc)

	if slope, intercept, ok := s.Trend(); ok && o.Trend {
		origin := valid[0].Month
		last := valid[len(valid)-1].Month
		line, err := plotter.NewLine(plotter.XYs{
			{X: float64(origin.Unix()), Y: intercept},
			{X: float64(last.Unix()), Y: intercept + slope*timeseries.Days(origin, last)},
		})
		if err != nil {
			return fmt.Errorf("failed to build trend line: %w", err)
		}
		line.Color = trendColor
		line.Width = vg.Points(1.5)
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("trend", line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}
