package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
project: forest-guardian
region:
  asset: users/forest/boundary
start: "2020-01-01"
end: "2021-01-01"
scale: 500
retry_delay: 2s
export:
  bucket: forest-rasters
  scale: 250
  poll_interval: 30s
chart:
  title: Monthly LST
  point_color: "#ff0000"
products:
  - name: ndvi-marginal
    collection: MODIS/061/MOD13Q1
    band: NDVI
    scale: 0.0001
    unit: NDVI
    min: -0.2
    max: 0.9
    qa:
      band: SummaryQA
      bits: {from: 0, to: 1}
      max_accepted: 1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("EE_PROJECT", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	cfg, err := Load(writeConfig(t, sampleConfig), true)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "forest-guardian", cfg.Project)
	assert.Equal(t, 500.0, cfg.Scale)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 10, cfg.Retries, "defaults survive partial files")
	assert.Equal(t, "forest-rasters", cfg.Export.Bucket)
	assert.Equal(t, 250.0, cfg.Export.Scale)
	assert.Equal(t, "EPSG:4326", cfg.Export.CRS)
	assert.Equal(t, 30*time.Second, cfg.Export.PollInterval)
	assert.Equal(t, "Monthly LST", cfg.Chart.Title)
	assert.Equal(t, "#ff0000", cfg.Chart.PointColor)
	assert.True(t, cfg.Chart.Trend)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Len(t, w.Months(), 12)

	roi, err := cfg.ROI()
	require.NoError(t, err)
	assert.Equal(t, "users/forest/boundary", roi.String())
}

func TestProductResolution(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), true)
	require.NoError(t, err)

	p, err := cfg.Product("ndvi-marginal")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.QA.MaxAccepted)

	p, err = cfg.Product("lst")
	require.NoError(t, err)
	assert.Equal(t, "LST_Day_1km", p.Band)

	_, err = cfg.Product("evi")
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("EE_PROJECT", "other-project")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")

	cfg, err := Load(writeConfig(t, sampleConfig), true)
	require.NoError(t, err)
	assert.Equal(t, "other-project", cfg.Project)
	assert.Equal(t, "/secrets/sa.json", cfg.Credentials)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.Scale)

	_, err = Load(missing, true)
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scale: [1, 2"), true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "region required")

	cfg.Region.Asset = "users/a/b"
	assert.Error(t, cfg.Validate(), "dates required")

	cfg.Start, cfg.End = "2020-01-01", "2020-06-01"
	assert.NoError(t, cfg.Validate())

	cfg.Scale = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateExport(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Region.Asset = "users/a/b"
		cfg.Start, cfg.End = "2020-01-01", "2020-06-01"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Export.PollInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "poll_interval")

	cfg = valid()
	cfg.Export.Scale = -1
	assert.ErrorContains(t, cfg.Validate(), "export.scale")

	cfg = valid()
	cfg.Export.Workers = 0
	assert.ErrorContains(t, cfg.Validate(), "workers")
}

func TestLoadZeroPollIntervalFailsValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
region:
  asset: users/forest/boundary
start: "2020-01-01"
end: "2021-01-01"
export:
  poll_interval: 0s
`), true)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "poll_interval")
}

func TestValidateRejectsPropertyWithAsset(t *testing.T) {
	cfg := Default()
	cfg.Start, cfg.End = "2020-01-01", "2020-06-01"
	cfg.Region = RegionConfig{Asset: "users/a/b", Property: "plot_id", Value: "b"}
	assert.ErrorContains(t, cfg.Validate(), "region.property")

	cfg.Region.Asset = ""
	cfg.Region.GeoJSON = "farm.geojson"
	assert.NoError(t, cfg.Validate())
}

func TestDataPath(t *testing.T) {
	t.Setenv("ROOT_PATH", "/srv/lst")
	assert.Equal(t, "/srv/lst/data/charts/lst.html", DataPath("charts", "lst.html"))

	t.Setenv("ROOT_PATH", "")
	assert.Equal(t, "data/cache", DataPath("cache"))
}

func TestROISelectsFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "FeatureCollection", "features": [
	  {"type": "Feature", "properties": {"plot_id": "a"},
	   "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}},
	  {"type": "Feature", "properties": {"plot_id": "b"},
	   "geometry": {"type": "Polygon", "coordinates": [[[5, 5], [6, 5], [6, 6], [5, 5]]]}}]}`), 0o644))

	cfg := Default()
	cfg.Region = RegionConfig{GeoJSON: path, Property: "plot_id", Value: "b"}
	roi, err := cfg.ROI()
	require.NoError(t, err)
	b, ok := roi.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 5, b.Min.Lon(), 1e-9)

	cfg.Region.Value = "c"
	_, err = cfg.ROI()
	assert.Error(t, err)
}
