// Package mapview writes a standalone web page showing Earth Engine tile
// layers over a base map.
package mapview

import (
	"errors"
	"html/template"
	"io"
	"math"

	"github.com/paulmach/orb"
)

type Layer struct {
	Name    string
	TileURL string
	Opacity float64
}

type Page struct {
	Title  string
	Center orb.Point
	Zoom   int
	Layers []Layer
}

// NewPage frames bounds when known, otherwise shows the whole world.
func NewPage(title string, bounds orb.Bound, known bool) *Page {
	p := &Page{Title: title, Center: orb.Point{0, 0}, Zoom: 2}
	if known {
		p.Center = bounds.Center()
		p.Zoom = Zoom(bounds)
	}
	return p
}

func (p *Page) AddLayer(name, tileURL string) {
	p.Layers = append(p.Layers, Layer{Name: name, TileURL: tileURL, Opacity: 0.8})
}

// Zoom picks the web-mercator zoom level at which bounds spans roughly one
// 256px tile.
func Zoom(b orb.Bound) int {
	span := math.Max(b.Max.Lon()-b.Min.Lon(), b.Max.Lat()-b.Min.Lat())
	if span <= 0 {
		return 14
	}
	z := int(math.Floor(math.Log2(360 / span)))
	if z < 2 {
		return 2
	}
	if z > 14 {
		return 14
	}
	return z
}

func (p *Page) Render(w io.Writer) error {
	if len(p.Layers) == 0 {
		return errors.New("mapview: page has no layers")
	}
	return pageTemplate.Execute(w, p)
}

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.Center.Lat}}, {{.Center.Lon}}], {{.Zoom}});
var base = L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var overlays = {};
{{range .Layers}}overlays[{{.Name}}] = L.tileLayer({{.TileURL}}, {opacity: {{.Opacity}}}).addTo(map);
{{end}}L.control.layers({"OpenStreetMap": base}, overlays).addTo(map);
</script>
</body>
</html>
`))
