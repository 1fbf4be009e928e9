// Package export submits raster exports of the LST and NDVI composites,
// follows them to completion and fetches the results.
package export

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/forest-guardian/lst-ndvi/internal/ee"
	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/region"
)

type Composite string

const (
	// Mosaic is the quality mosaic of the whole window.
	Mosaic Composite = "mosaic"
	// Median stacks the monthly medians into one multi-band raster.
	Median Composite = "median"
)

func ParseComposite(s string) (Composite, error) {
	switch c := Composite(strings.ToLower(s)); c {
	case Mosaic, Median:
		return c, nil
	}
	return "", fmt.Errorf("unknown composite %q (want %s or %s)", s, Mosaic, Median)
}

type Request struct {
	Product     products.Product
	Composite   Composite
	ROI         *region.ROI
	Window      region.Window
	Bucket      string
	Folder      string
	FileName    string
	ScaleMeters float64
	CRS         string
	MaxPixels   int64
}

func (r Request) Validate() error {
	if r.ROI == nil {
		return errors.New("export: region is required")
	}
	if r.Bucket == "" {
		return errors.New("export: bucket is required")
	}
	if r.ScaleMeters <= 0 {
		return fmt.Errorf("export: scale must be positive, got %v", r.ScaleMeters)
	}
	if _, err := ParseComposite(string(r.Composite)); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return r.Product.Validate()
}

// Name is the export description, also used as default file name.
func (r Request) Name() string {
	if r.FileName != "" {
		return r.FileName
	}
	return fmt.Sprintf("%s_%s_%s_%s", r.Product.Name, r.Composite,
		r.Window.Start.Format(region.DateLayout), r.Window.End.Format(region.DateLayout))
}

// Prefix is the object name prefix in the bucket. The platform appends
// the .tif suffix, and a tile suffix for large rasters.
func (r Request) Prefix() string {
	if r.Folder == "" {
		return r.Name()
	}
	return path.Join(r.Folder, r.Name())
}

// Image builds the graph of the exported raster.
func (r Request) Image() (*graph.Node, error) {
	switch r.Composite {
	case Mosaic:
		return r.Product.QualityMosaic(r.ROI, r.Window, "")
	case Median:
		stack, _, err := r.Product.MonthlyStack(r.ROI, r.Window)
		return stack, err
	}
	return nil, fmt.Errorf("unknown composite %q", r.Composite)
}

// Build validates r and encodes the image:export body.
func (r Request) Build() (ee.ExportRequest, error) {
	if err := r.Validate(); err != nil {
		return ee.ExportRequest{}, err
	}
	img, err := r.Image()
	if err != nil {
		return ee.ExportRequest{}, err
	}
	img = graph.Invoke("Image.clipToBoundsAndScale", graph.Args{
		"input":    img,
		"geometry": r.ROI.Node(),
		"scale":    graph.Constant(r.ScaleMeters),
	})
	expr, err := graph.Encode(img)
	if err != nil {
		return ee.ExportRequest{}, err
	}

	maxPixels := r.MaxPixels
	if maxPixels <= 0 {
		maxPixels = int64(products.MaxPixels)
	}
	req := ee.ExportRequest{
		Expression:  expr,
		Description: r.Name(),
		FileExportOptions: &ee.FileExportOptions{
			FileFormat: ee.FormatGeoTIFF,
			CloudStorageDestination: &ee.CloudStorageDestination{
				Bucket:         r.Bucket,
				FilenamePrefix: r.Prefix(),
			},
		},
		MaxPixels: maxPixels,
	}
	if r.CRS != "" {
		req.Grid = &ee.PixelGrid{CRSCode: r.CRS}
	}
	return req, nil
}
