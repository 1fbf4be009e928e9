package region

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
)

const plotGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"plot_id": "a"},
      "geometry": {"type": "Polygon", "coordinates": [[[-47.1, -22.9], [-47.0, -22.9], [-47.0, -22.8], [-47.1, -22.9]]]}
    },
    {
      "type": "Feature",
      "properties": {"plot_id": "b"},
      "geometry": {"type": "Polygon", "coordinates": [[[-46.9, -22.7], [-46.8, -22.7], [-46.8, -22.6], [-46.9, -22.7]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "well"},
      "geometry": {"type": "Point", "coordinates": [-47.05, -22.85]}
    }
  ]
}`

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2020-01-15", "2020-04-01")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-15/2020-04-01", w.String())

	_, err = ParseWindow("2020-04-01", "2020-04-01")
	assert.ErrorIs(t, err, ErrEmptyWindow)

	_, err = ParseWindow("2020-05-01", "2020-04-01")
	assert.ErrorIs(t, err, ErrEmptyWindow)

	_, err = ParseWindow("15/01/2020", "2020-04-01")
	assert.Error(t, err)
}

func TestWindowMonths(t *testing.T) {
	w, err := ParseWindow("2020-01-15", "2020-03-10")
	require.NoError(t, err)

	months := w.Months()
	require.Len(t, months, 3)
	assert.Equal(t, "2020-01-15/2020-02-01", months[0].String())
	assert.Equal(t, "2020-02-01/2020-03-01", months[1].String())
	assert.Equal(t, "2020-03-01/2020-03-10", months[2].String())

	w, err = ParseWindow("2019-12-01", "2021-01-01")
	require.NoError(t, err)
	assert.Len(t, w.Months(), 13)

	assert.Empty(t, Window{}.Months())
}

func TestWindowNode(t *testing.T) {
	w := Window{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	n := w.Node()
	require.Equal(t, "DateRange", n.FunctionName())
	assert.Equal(t, "Date", n.Argument("start").FunctionName())

	expr, err := graph.Encode(n)
	require.NoError(t, err)
	data, err := json.Marshal(expr)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1577836800000")
}

func TestFromGeoJSONFeatureCollection(t *testing.T) {
	roi, err := FromGeoJSON([]byte(plotGeoJSON))
	require.NoError(t, err)

	n := roi.Node()
	assert.Equal(t, "GeometryConstructors.MultiPolygon", n.FunctionName())

	b, ok := roi.Bounds()
	require.True(t, ok)
	assert.InDelta(t, -47.1, b.Min.Lon(), 1e-9)
	assert.InDelta(t, -22.6, b.Max.Lat(), 1e-9)
}

func TestFromGeoJSONSinglePolygon(t *testing.T) {
	roi, err := FromGeoJSON([]byte(`{"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}`))
	require.NoError(t, err)
	n := roi.Node()
	assert.Equal(t, "GeometryConstructors.Polygon", n.FunctionName())

	expr, err := graph.Encode(n)
	require.NoError(t, err)
	coords := expr.Values[expr.Result].FunctionInvocationValue.Arguments["coordinates"].ConstantValue
	assert.JSONEq(t, `[[[0,0],[1,0],[1,1],[0,0]]]`, string(coords))
}

func TestFromGeoJSONWithoutPolygon(t *testing.T) {
	_, err := FromGeoJSON([]byte(`{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [0, 0]}}`))
	assert.ErrorIs(t, err, ErrNoPolygon)

	_, err = FromGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestAssetROI(t *testing.T) {
	roi, err := FromAsset("users/someone/boundary")
	require.NoError(t, err)

	n := roi.Node()
	require.Equal(t, "Collection.geometry", n.FunctionName())
	assert.Equal(t, "Collection.loadTable", n.Argument("collection").FunctionName())

	_, ok := roi.Bounds()
	assert.False(t, ok)
	assert.Equal(t, "users/someone/boundary", roi.String())

	_, err = FromAsset("")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.geojson")
	require.NoError(t, os.WriteFile(path, []byte(plotGeoJSON), 0o644))

	roi, err := Load("", path)
	require.NoError(t, err)
	assert.Contains(t, roi.String(), "MultiPolygon")

	_, err = Load("users/a/b", path)
	assert.Error(t, err)

	_, err = Load("", "")
	assert.Error(t, err)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}
