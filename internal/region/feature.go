package region

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrFeatureNotFound = errors.New("region: feature not found")

// SelectFeature keeps the features of a FeatureCollection whose property
// equals value, e.g. one plot out of a farm boundary file.
func SelectFeature(data []byte, property, value string) (*ROI, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}
	selected := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		v, ok := f.Properties[property]
		if !ok || fmt.Sprint(v) != value {
			continue
		}
		selected.Append(f)
	}
	if len(selected.Features) == 0 {
		return nil, fmt.Errorf("%w: %s=%s", ErrFeatureNotFound, property, value)
	}
	out, err := selected.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return FromGeoJSON(out)
}

// LoadFeature reads the GeoJSON file at path and selects property=value.
func LoadFeature(path, property, value string) (*ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return SelectFeature(data, property, value)
}

// Centroid is the area-weighted centre of a local geometry.
func (r *ROI) Centroid() (orb.Point, bool) {
	if r.geometry == nil {
		return orb.Point{}, false
	}
	centroid, area := planar.CentroidArea(r.geometry)
	if area <= 0 {
		return orb.Point{}, false
	}
	return centroid, true
}
