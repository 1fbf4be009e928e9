package mapview

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoom(t *testing.T) {
	assert.Equal(t, 2, Zoom(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}))
	assert.Equal(t, 8, Zoom(orb.Bound{Min: orb.Point{-47.5, -23}, Max: orb.Point{-46.5, -22.5}}))
	assert.Equal(t, 14, Zoom(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}))
}

func TestRender(t *testing.T) {
	p := NewPage("NDVI greenest pixel", orb.Bound{Min: orb.Point{-47.5, -23}, Max: orb.Point{-46.5, -22.5}}, true)
	p.AddLayer("ndvi", "https://earthengine.googleapis.com/v1/projects/p/maps/abc/tiles/{z}/{x}/{y}")

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	html := buf.String()
	assert.Contains(t, html, "<title>NDVI greenest pixel</title>")
	assert.Contains(t, html, "-22.75")
	assert.Contains(t, html, "earthengine.googleapis.com")
	assert.Contains(t, html, "abc")
}

func TestRenderWorldView(t *testing.T) {
	p := NewPage("LST", orb.Bound{}, false)
	assert.Equal(t, 2, p.Zoom)
	assert.Error(t, p.Render(&bytes.Buffer{}))
}
