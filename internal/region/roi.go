// Package region holds the region of interest and the date window that
// parameterize every request.
package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
)

var ErrNoPolygon = errors.New("region: geojson contains no polygon")

// ROI is either a remote feature-collection asset or a local polygonal
// geometry.
type ROI struct {
	asset    string
	geometry orb.Geometry
}

func FromAsset(id string) (*ROI, error) {
	if id == "" {
		return nil, errors.New("region: empty asset id")
	}
	return &ROI{asset: id}, nil
}

// FromGeoJSON accepts a FeatureCollection, a Feature or a bare geometry.
// All polygonal geometries found are merged into one region.
func FromGeoJSON(data []byte) (*ROI, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feature collection: %w", err)
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feature: %w", err)
		}
		geometries = append(geometries, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse geometry: %w", err)
		}
		geometries = append(geometries, g.Geometry())
	}

	var polygons orb.MultiPolygon
	for _, g := range geometries {
		switch g := g.(type) {
		case orb.Polygon:
			polygons = append(polygons, g)
		case orb.MultiPolygon:
			polygons = append(polygons, g...)
		}
	}
	switch len(polygons) {
	case 0:
		return nil, ErrNoPolygon
	case 1:
		return &ROI{geometry: polygons[0]}, nil
	}
	return &ROI{geometry: polygons}, nil
}

func Load(asset, path string) (*ROI, error) {
	switch {
	case asset != "" && path != "":
		return nil, errors.New("region: set either an asset id or a geojson file, not both")
	case asset != "":
		return FromAsset(asset)
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read region file: %w", err)
		}
		return FromGeoJSON(data)
	}
	return nil, errors.New("region: no asset id or geojson file configured")
}

// Node is the server-side geometry of the region.
func (r *ROI) Node() *graph.Node {
	switch g := r.geometry.(type) {
	case orb.Polygon:
		return graph.Invoke("GeometryConstructors.Polygon", graph.Args{
			"coordinates": graph.Constant(polygonCoordinates(g)),
			"geodesic":    graph.Constant(false),
		})
	case orb.MultiPolygon:
		coords := make([][][][2]float64, len(g))
		for i, p := range g {
			coords[i] = polygonCoordinates(p)
		}
		return graph.Invoke("GeometryConstructors.MultiPolygon", graph.Args{
			"coordinates": graph.Constant(coords),
			"geodesic":    graph.Constant(false),
		})
	}
	table := graph.Invoke("Collection.loadTable", graph.Args{"tableId": graph.Constant(r.asset)})
	return graph.Invoke("Collection.geometry", graph.Args{"collection": table})
}

func polygonCoordinates(p orb.Polygon) [][][2]float64 {
	rings := make([][][2]float64, len(p))
	for i, ring := range p {
		rings[i] = make([][2]float64, len(ring))
		for j, pt := range ring {
			rings[i][j] = [2]float64{pt.Lon(), pt.Lat()}
		}
	}
	return rings
}

// Bounds is only known for local geometries.
func (r *ROI) Bounds() (orb.Bound, bool) {
	if r.geometry == nil {
		return orb.Bound{}, false
	}
	return r.geometry.Bound(), true
}

func (r *ROI) String() string {
	if r.asset != "" {
		return r.asset
	}
	b := r.geometry.Bound()
	return fmt.Sprintf("%s [%.4f,%.4f,%.4f,%.4f]", r.geometry.GeoJSONType(), b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}
