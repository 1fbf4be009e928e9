// Package timeseries turns regional reductions returned by Earth Engine
// into monthly series.
package timeseries

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/forest-guardian/lst-ndvi/internal/region"
)

type Point struct {
	Month time.Time
	Value float64
	// Valid is false when every pixel of the month was masked.
	Valid bool
}

type Series struct {
	Product string
	Unit    string
	Points  []Point
}

// Decode reads the list of per-month dictionaries produced by
// products.MonthlySeries.
func Decode(raw json.RawMessage, product, band, unit string, months []region.Window) (Series, error) {
	var rows []map[string]*float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return Series{}, fmt.Errorf("failed to decode series: %w", err)
	}
	if len(rows) != len(months) {
		return Series{}, fmt.Errorf("got %d values for %d months", len(rows), len(months))
	}
	s := Series{Product: product, Unit: unit, Points: make([]Point, len(rows))}
	for i, row := range rows {
		p := Point{Month: months[i].Start}
		if v := row[band]; v != nil && !math.IsNaN(*v) {
			p.Value = *v
			p.Valid = true
		}
		s.Points[i] = p
	}
	return s, nil
}

func (s Series) ValidPoints() []Point {
	valid := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Valid {
			valid = append(valid, p)
		}
	}
	return valid
}

// Trend fits value = intercept + slope*days by ordinary least squares,
// where days counts from the first valid month. ok is false with fewer
// than two valid points.
func (s Series) Trend() (slope, intercept float64, ok bool) {
	valid := s.ValidPoints()
	if len(valid) < 2 {
		return 0, 0, false
	}
	xs := make([]float64, len(valid))
	ys := make([]float64, len(valid))
	for i, p := range valid {
		xs[i] = Days(valid[0].Month, p.Month)
		ys[i] = p.Value
	}
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return slope, intercept, true
}

// Days is the fractional number of days from origin to t.
func Days(origin, t time.Time) float64 {
	return t.Sub(origin).Hours() / 24
}

type Summary struct {
	Count  int
	Masked int
	Min    float64
	Max    float64
	Mean   float64
}

func (s Series) Summary() Summary {
	valid := s.ValidPoints()
	sum := Summary{Count: len(valid), Masked: len(s.Points) - len(valid)}
	if len(valid) == 0 {
		return sum
	}
	values := make([]float64, len(valid))
	sum.Min, sum.Max = math.Inf(1), math.Inf(-1)
	for i, p := range valid {
		values[i] = p.Value
		sum.Min = math.Min(sum.Min, p.Value)
		sum.Max = math.Max(sum.Max, p.Value)
	}
	sum.Mean = stat.Mean(values, nil)
	return sum
}

type csvRow struct {
	Product string `csv:"product"`
	Month   string `csv:"month"`
	Value   string `csv:"value"`
	Unit    string `csv:"unit"`
	Valid   bool   `csv:"valid"`
}

func (s Series) WriteCSV(w io.Writer) error {
	rows := make([]*csvRow, len(s.Points))
	for i, p := range s.Points {
		row := &csvRow{
			Product: s.Product,
			Month:   p.Month.Format("2006-01"),
			Unit:    s.Unit,
			Valid:   p.Valid,
		}
		if p.Valid {
			row.Value = strconv.FormatFloat(p.Value, 'f', -1, 64)
		}
		rows[i] = row
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write series csv: %w", err)
	}
	return nil
}
