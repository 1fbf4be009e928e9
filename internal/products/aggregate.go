package products

import (
	"fmt"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/region"
)

// MaxPixels bounds server-side reductions over the region.
const MaxPixels = 1e13

// ImageCollection loads the product, filters it to the window and region and
// maps the transform chain over every image.
func (p Product) ImageCollection(roi *region.ROI, w region.Window) *graph.Node {
	coll := call("ImageCollection.load", graph.Args{"id": graph.Constant(p.Collection)})
	coll = call("Collection.filter", graph.Args{
		"collection": coll,
		"filter": call("Filter.dateRangeContains", graph.Args{
			"leftValue":  w.Node(),
			"rightField": graph.Constant("system:time_start"),
		}),
	})
	coll = call("Collection.filter", graph.Args{
		"collection": coll,
		"filter": call("Filter.intersects", graph.Args{
			"leftField":  graph.Constant(".all"),
			"rightValue": roi.Node(),
		}),
	})
	return call("Collection.map", graph.Args{
		"collection":    coll,
		"baseAlgorithm": graph.Lambda(p.Chain(graph.Arg(mappingVar)), mappingVar),
	})
}

// QualityMosaic keeps, per pixel, the observation with the highest
// qualityBand value. An empty qualityBand selects the product band, which
// for NDVI gives the greenest-pixel composite with its date in TimeBand.
func (p Product) QualityMosaic(roi *region.ROI, w region.Window, qualityBand string) (*graph.Node, error) {
	if qualityBand == "" {
		qualityBand = p.Band
	}
	if qualityBand != p.Band && qualityBand != TimeBand {
		return nil, fmt.Errorf("quality band %q is not produced by %s (bands: %v)", qualityBand, p.Name, p.Bands())
	}
	mosaic := call("ImageCollection.qualityMosaic", graph.Args{
		"collection":  p.ImageCollection(roi, w),
		"qualityBand": graph.Constant(qualityBand),
	})
	return clip(mosaic, roi), nil
}

// Median reduces a transformed collection to its per-pixel median. A fully
// masked placeholder keeps the output bands present when the collection
// has no images in the window.
func (p Product) Median(coll *graph.Node) *graph.Node {
	placeholder := call("Image.updateMask", graph.Args{
		"image": rename(call("Image.toFloat", graph.Args{
			"value": call("Image.constant", graph.Args{"value": graph.Constant([]float64{0, 0})}),
		}), p.Bands()...),
		"mask": constant(0),
	})
	merged := call("ImageCollection.merge", graph.Args{
		"collection1": coll,
		"collection2": call("ImageCollection.fromImages", graph.Args{
			"images": graph.Array(placeholder),
		}),
	})
	reduced := call("ImageCollection.reduce", graph.Args{
		"collection": merged,
		"reducer":    call("Reducer.median", nil),
	})
	return rename(reduced, p.Bands()...)
}

func (p Product) monthlyComposite(roi *region.ROI, month region.Window) *graph.Node {
	return call("Element.set", graph.Args{
		"object": p.Median(p.ImageCollection(roi, month)),
		"key":    graph.Constant("system:time_start"),
		"value":  graph.Constant(month.Start.UnixMilli()),
	})
}

// MonthlyMedian builds one median composite per calendar month of w.
func (p Product) MonthlyMedian(roi *region.ROI, w region.Window) (*graph.Node, []region.Window, error) {
	months := w.Months()
	if len(months) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", region.ErrEmptyWindow, w)
	}
	images := make([]*graph.Node, len(months))
	for i, m := range months {
		images[i] = p.monthlyComposite(roi, m)
	}
	return call("ImageCollection.fromImages", graph.Args{"images": graph.Array(images...)}), months, nil
}

// MonthlyComposites returns each monthly median as its own image, clipped
// to the region, for direct download.
func (p Product) MonthlyComposites(roi *region.ROI, w region.Window) ([]*graph.Node, []region.Window, error) {
	months := w.Months()
	if len(months) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", region.ErrEmptyWindow, w)
	}
	images := make([]*graph.Node, len(months))
	for i, m := range months {
		images[i] = clip(selectBands(p.monthlyComposite(roi, m), p.Band), roi)
	}
	return images, months, nil
}

// MonthlyStack stacks the monthly value bands into one multi-band image,
// named <index>_<band>, for a single raster export.
func (p Product) MonthlyStack(roi *region.ROI, w region.Window) (*graph.Node, []region.Window, error) {
	months := w.Months()
	if len(months) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", region.ErrEmptyWindow, w)
	}
	images := make([]*graph.Node, len(months))
	for i, m := range months {
		images[i] = selectBands(p.monthlyComposite(roi, m), p.Band)
	}
	stack := call("ImageCollection.toBands", graph.Args{
		"collection": call("ImageCollection.fromImages", graph.Args{"images": graph.Array(images...)}),
	})
	return clip(stack, roi), months, nil
}

// MonthlySeries requests the regional mean of every monthly median. The
// result evaluates to a list of dictionaries keyed by the product band,
// with null for months where every pixel was masked.
func (p Product) MonthlySeries(roi *region.ROI, w region.Window, scale float64) (*graph.Node, []region.Window, error) {
	if scale <= 0 {
		return nil, nil, fmt.Errorf("reduction scale must be positive, got %v", scale)
	}
	months := w.Months()
	if len(months) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", region.ErrEmptyWindow, w)
	}
	stats := make([]*graph.Node, len(months))
	for i, m := range months {
		stats[i] = call("Image.reduceRegion", graph.Args{
			"image":     selectBands(p.Median(p.ImageCollection(roi, m)), p.Band),
			"reducer":   call("Reducer.mean", nil),
			"geometry":  roi.Node(),
			"scale":     graph.Constant(scale),
			"maxPixels": graph.Constant(int64(MaxPixels)),
		})
	}
	return graph.Array(stats...), months, nil
}

// Visualize renders an image to 8-bit RGB with the product palette.
func (p Product) Visualize(img *graph.Node) *graph.Node {
	return call("Image.visualize", graph.Args{
		"image":   img,
		"bands":   graph.Constant([]string{p.Band}),
		"min":     graph.Constant([]float64{p.Min}),
		"max":     graph.Constant([]float64{p.Max}),
		"palette": graph.Constant(p.Palette),
	})
}

func clip(img *graph.Node, roi *region.ROI) *graph.Node {
	return call("Image.clip", graph.Args{
		"input":    img,
		"geometry": roi.Node(),
	})
}
