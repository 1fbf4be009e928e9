package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/forest-guardian/lst-ndvi/internal/timeseries"
)

// RenderHTML writes an interactive scatter chart of s, overlaid with the
// trend line when enabled and computable.
func RenderHTML(w io.Writer, s timeseries.Series, o Options) error {
	if len(s.Points) == 0 {
		return fmt.Errorf("series %s has no points", s.Product)
	}
	if _, err := parseColor(o.PointColor); err != nil {
		return err
	}
	if _, err := parseColor(o.TrendColor); err != nil {
		return err
	}

	labels := make([]string, len(s.Points))
	points := make([]opts.ScatterData, len(s.Points))
	for i, p := range s.Points {
		labels[i] = p.Month.Format("2006-01")
		// echarts skips "-" values, leaving a gap for masked months.
		var v interface{} = "-"
		if p.Valid {
			v = p.Value
		}
		points[i] = opts.ScatterData{Value: v, Symbol: "circle", SymbolSize: o.PointSize}
	}

	summary := s.Summary()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: fmt.Sprintf("%d months, %d masked, mean %.3f %s", len(s.Points), summary.Masked, summary.Mean, s.Unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "month", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: s.Unit, NameLocation: "middle", NameGap: 40}),
	)
	scatter.SetXAxis(labels).AddSeries(s.Product, points,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: o.PointColor}),
	)

	if o.Trend {
		if line, ok := trendLine(s, labels, o); ok {
			scatter.Overlap(line)
		}
	}
	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func trendLine(s timeseries.Series, labels []string, o Options) (*charts.Line, bool) {
	slope, intercept, ok := s.Trend()
	if !ok {
		return nil, false
	}
	origin := s.ValidPoints()[0].Month
	data := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		data[i] = opts.LineData{Value: intercept + slope*timeseries.Days(origin, p.Month)}
	}
	line := charts.NewLine()
	line.SetXAxis(labels).AddSeries("trend", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: o.TrendColor, Type: "dashed", Width: 2}),
	)
	return line, true
}
