package export

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/forest-guardian/lst-ndvi/internal/products"
)

// Stats summarizes the valid pixels of a raster band.
type Stats struct {
	Width, Height int
	Valid         int
	Masked        int
	Min, Max      float64
	Mean          float64
}

// Ramp interpolates linearly, in Lab space, between evenly spaced colors
// mapped onto [Min, Max].
type Ramp struct {
	Min, Max float64
	stops    []colorful.Color
}

func NewRamp(palette []string, min, max float64) (*Ramp, error) {
	if len(palette) < 2 {
		return nil, fmt.Errorf("palette needs at least two colors, got %d", len(palette))
	}
	if max <= min {
		return nil, fmt.Errorf("invalid ramp range [%v, %v]", min, max)
	}
	stops := make([]colorful.Color, len(palette))
	for i, hex := range palette {
		if !strings.HasPrefix(hex, "#") {
			hex = "#" + hex
		}
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid palette color %q: %w", palette[i], err)
		}
		stops[i] = c
	}
	return &Ramp{Min: min, Max: max, stops: stops}, nil
}

// At clamps v to the ramp range.
func (r *Ramp) At(v float64) color.Color {
	t := (v - r.Min) / (r.Max - r.Min)
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(r.stops)-1)
	i := int(pos)
	if i >= len(r.stops)-1 {
		return r.stops[len(r.stops)-1].Clamped()
	}
	return r.stops[i].BlendLab(r.stops[i+1], pos-float64(i)).Clamped()
}

func masked(v, nodata float64, hasNoData bool) bool {
	return math.IsNaN(v) || (hasNoData && v == nodata)
}

func summarize(values []float64, width, height int, nodata float64, hasNoData bool) Stats {
	st := Stats{Width: width, Height: height, Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, v := range values {
		if masked(v, nodata, hasNoData) {
			st.Masked++
			continue
		}
		st.Valid++
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	if st.Valid == 0 {
		st.Min, st.Max = math.NaN(), math.NaN()
		st.Mean = math.NaN()
		return st
	}
	st.Mean = sum / float64(st.Valid)
	return st
}

// Preview renders band (1-based) of the GeoTIFF at src to a PNG at dst
// with the product palette. Masked pixels stay transparent.
func Preview(src, dst string, band int, p products.Product) (Stats, error) {
	ds, err := godal.Open(src)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open TIFF file: %v", err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if band < 1 || band > len(bands) {
		return Stats{}, fmt.Errorf("band %d out of range, %s has %d bands", band, src, len(bands))
	}
	width, height := ds.Structure().SizeX, ds.Structure().SizeY
	data := make([]float64, width*height)
	if err := bands[band-1].Read(0, 0, data, width, height); err != nil {
		return Stats{}, fmt.Errorf("failed to read raster data: %v", err)
	}
	nodata, hasNoData := bands[band-1].NoData()
	st := summarize(data, width, height, nodata, hasNoData)

	ramp, err := NewRamp(p.Palette, p.Min, p.Max)
	if err != nil {
		return st, err
	}
	if err := renderPNG(dst, data, width, height, ramp, nodata, hasNoData); err != nil {
		return st, err
	}
	return st, nil
}

func renderPNG(dst string, data []float64, width, height int, ramp *Ramp, nodata float64, hasNoData bool) error {
	dc := gg.NewContext(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := data[y*width+x]
			if masked(v, nodata, hasNoData) {
				continue
			}
			dc.SetColor(ramp.At(v))
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(dst); err != nil {
		return fmt.Errorf("failed to save image: %v", err)
	}
	return nil
}
