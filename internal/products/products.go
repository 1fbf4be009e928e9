// Package products describes the LST and NDVI collections and builds the
// per-image transform chain and temporal aggregates submitted to Earth
// Engine.
package products

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/qa"
)

// TimeBand holds the acquisition time in milliseconds since the epoch.
const TimeBand = "t"

const mappingVar = "_MAPPING_VAR_0_0"

type Product struct {
	Name       string   `yaml:"name"`
	Collection string   `yaml:"collection"`
	Band       string   `yaml:"band"`
	QA         qa.Rule  `yaml:"qa"`
	Scale      float64  `yaml:"scale"`
	Offset     float64  `yaml:"offset"`
	Unit       string   `yaml:"unit"`
	Min        float64  `yaml:"min"`
	Max        float64  `yaml:"max"`
	Palette    []string `yaml:"palette"`
}

var LST = Product{
	Name:       "lst",
	Collection: "MODIS/061/MOD11A2",
	Band:       "LST_Day_1km",
	QA:         qa.MOD11A2QCDay,
	Scale:      0.02,
	Offset:     -273.15,
	Unit:       "°C",
	Min:        -10,
	Max:        45,
	Palette:    []string{"040274", "0602ff", "30c8e2", "3be285", "fff705", "ff8b13", "de0101", "911003"},
}

var NDVI = Product{
	Name:       "ndvi",
	Collection: "MODIS/061/MOD13Q1",
	Band:       "NDVI",
	QA:         qa.MOD13Q1SummaryQA,
	Scale:      0.0001,
	Offset:     0,
	Unit:       "NDVI",
	Min:        -0.2,
	Max:        0.9,
	Palette:    []string{"ffffff", "ce7e45", "df923d", "f1b555", "fcd163", "99b718", "74a901", "66a000", "529400", "3e8601", "207401", "056201", "004c00", "023b01", "012e01", "011d01", "011301"},
}

var presets = map[string]Product{
	LST.Name:  LST,
	NDVI.Name: NDVI,
}

func Lookup(name string) (Product, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Product{}, fmt.Errorf("unknown product %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Product) Validate() error {
	if p.Collection == "" || p.Band == "" {
		return fmt.Errorf("product %q: collection and band are required", p.Name)
	}
	if p.Scale == 0 {
		return fmt.Errorf("product %q: scale must not be zero", p.Name)
	}
	if p.Min >= p.Max {
		return fmt.Errorf("product %q: visualization min must be below max", p.Name)
	}
	if err := p.QA.Validate(); err != nil {
		return fmt.Errorf("product %q: %w", p.Name, err)
	}
	return nil
}

// Bands lists the bands produced by Chain.
func (p Product) Bands() []string {
	return []string{p.Band, TimeBand}
}

// Chain is the per-image transform: scale the value band to float, mask
// it with the QA rule and append the acquisition time band.
func (p Product) Chain(img *graph.Node) *graph.Node {
	value := selectBands(img, p.Band)
	scaled := call("Image.multiply", graph.Args{
		"image1": value,
		"image2": constant(p.Scale),
	})
	if p.Offset != 0 {
		scaled = call("Image.add", graph.Args{
			"image1": scaled,
			"image2": constant(p.Offset),
		})
	}
	// Same type as the time band, image:export rejects mixed band types.
	scaled = rename(call("Image.toFloat", graph.Args{"value": scaled}), p.Band)

	masked := call("Image.updateMask", graph.Args{
		"image": scaled,
		"mask":  p.QA.Mask(img),
	})
	withTime := call("Image.addBands", graph.Args{
		"dstImg": masked,
		"srcImg": timeBand(img),
	})
	return call("Element.copyProperties", graph.Args{
		"destination": withTime,
		"source":      img,
		"properties":  graph.Constant([]string{"system:time_start"}),
	})
}

func timeBand(img *graph.Node) *graph.Node {
	start := call("Element.get", graph.Args{
		"object":   img,
		"property": graph.Constant("system:time_start"),
	})
	t := call("Image.toFloat", graph.Args{
		"value": call("Image.constant", graph.Args{"value": start}),
	})
	return rename(t, TimeBand)
}

func call(name string, args graph.Args) *graph.Node {
	return graph.Invoke(name, args)
}

func constant(v float64) *graph.Node {
	return call("Image.constant", graph.Args{"value": graph.Constant(v)})
}

func selectBands(img *graph.Node, bands ...string) *graph.Node {
	return call("Image.select", graph.Args{
		"input":         img,
		"bandSelectors": graph.Constant(bands),
	})
}

func rename(img *graph.Node, names ...string) *graph.Node {
	return call("Image.rename", graph.Args{
		"input": img,
		"names": graph.Constant(names),
	})
}
