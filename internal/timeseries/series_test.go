package timeseries

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/lst-ndvi/internal/region"
)

func months(t *testing.T, start, end string) []region.Window {
	t.Helper()
	w, err := region.ParseWindow(start, end)
	require.NoError(t, err)
	return w.Months()
}

func TestDecode(t *testing.T) {
	raw := json.RawMessage(`[{"NDVI": 0.31}, {"NDVI": null}, {}, {"NDVI": 0.55}]`)
	s, err := Decode(raw, "ndvi", "NDVI", "NDVI", months(t, "2020-01-01", "2020-05-01"))
	require.NoError(t, err)
	require.Len(t, s.Points, 4)

	assert.True(t, s.Points[0].Valid)
	assert.InDelta(t, 0.31, s.Points[0].Value, 1e-12)
	assert.False(t, s.Points[1].Valid)
	assert.False(t, s.Points[2].Valid)
	assert.Equal(t, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), s.Points[3].Month)
	assert.Len(t, s.ValidPoints(), 2)
}

func TestDecodeMismatch(t *testing.T) {
	_, err := Decode(json.RawMessage(`[{"NDVI": 0.31}]`), "ndvi", "NDVI", "", months(t, "2020-01-01", "2020-03-01"))
	assert.Error(t, err)

	_, err = Decode(json.RawMessage(`{"NDVI": 0.31}`), "ndvi", "NDVI", "", months(t, "2020-01-01", "2020-02-01"))
	assert.Error(t, err)
}

func TestTrend(t *testing.T) {
	origin := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{Points: []Point{
		{Month: origin, Value: 10, Valid: true},
		{Month: origin.AddDate(0, 0, 10), Value: 0, Valid: false},
		{Month: origin.AddDate(0, 0, 30), Value: 13, Valid: true},
		{Month: origin.AddDate(0, 0, 60), Value: 16, Valid: true},
	}}
	slope, intercept, ok := s.Trend()
	require.True(t, ok)
	assert.InDelta(t, 0.1, slope, 1e-9)
	assert.InDelta(t, 10, intercept, 1e-9)
}

func TestTrendNeedsTwoPoints(t *testing.T) {
	s := Series{Points: []Point{
		{Month: time.Now(), Value: 1, Valid: true},
		{Month: time.Now(), Valid: false},
	}}
	_, _, ok := s.Trend()
	assert.False(t, ok)
}

func TestSummary(t *testing.T) {
	s := Series{Points: []Point{
		{Value: 2, Valid: true},
		{Value: 4, Valid: true},
		{Valid: false},
	}}
	sum := s.Summary()
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 1, sum.Masked)
	assert.Equal(t, 2.0, sum.Min)
	assert.Equal(t, 4.0, sum.Max)
	assert.Equal(t, 3.0, sum.Mean)

	assert.Equal(t, Summary{}, Series{}.Summary())
}

func TestWriteCSV(t *testing.T) {
	s := Series{Product: "lst", Unit: "°C", Points: []Point{
		{Month: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 21.5, Valid: true},
		{Month: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)},
	}}
	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "product,month,value,unit,valid", lines[0])
	assert.Equal(t, "lst,2020-01,21.5,°C,true", lines[1])
	assert.Equal(t, "lst,2020-02,,°C,false", lines[2])
}
