// Package qa decodes packed quality-assurance bit fields, both locally and
// as graph nodes evaluated by Earth Engine.
package qa

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
)

var ErrInvalidRange = errors.New("qa: invalid bit range")

// Bits extracts the inclusive bit range [from, to] of value.
func Bits(value, from, to uint) uint {
	return (value >> from) & ((1 << (to - from + 1)) - 1)
}

// Range is an inclusive range of bit positions, least significant first.
type Range struct {
	From uint `yaml:"from"`
	To   uint `yaml:"to"`
}

func (r Range) Validate() error {
	if r.From > r.To || r.To >= 32 {
		return fmt.Errorf("%w: %d-%d", ErrInvalidRange, r.From, r.To)
	}
	return nil
}

func (r Range) mask() uint {
	return (1 << (r.To - r.From + 1)) - 1
}

// Extract applies Bits to value.
func (r Range) Extract(value uint) uint {
	return Bits(value, r.From, r.To)
}

// ExtractImage builds the same shift-and-mask on every pixel of img.
func (r Range) ExtractImage(img *graph.Node) *graph.Node {
	shifted := graph.Invoke("Image.rightShift", graph.Args{
		"image1": img,
		"image2": constantImage(r.From),
	})
	return graph.Invoke("Image.bitwiseAnd", graph.Args{
		"image1": shifted,
		"image2": constantImage(r.mask()),
	})
}

// Rule accepts a pixel when the decoded field is at most MaxAccepted.
type Rule struct {
	Band        string   `yaml:"band"`
	Range       Range    `yaml:"bits"`
	MaxAccepted uint     `yaml:"max_accepted"`
	Labels      []string `yaml:"labels,omitempty"`
}

func (r Rule) Validate() error {
	if r.Band == "" {
		return errors.New("qa: rule without band")
	}
	if err := r.Range.Validate(); err != nil {
		return err
	}
	if r.MaxAccepted > r.Range.mask() {
		return fmt.Errorf("qa: max accepted value %d does not fit in bits %d-%d", r.MaxAccepted, r.Range.From, r.Range.To)
	}
	return nil
}

func (r Rule) Accepts(value uint) bool {
	return r.Range.Extract(value) <= r.MaxAccepted
}

// Describe returns the documented meaning of the decoded field.
func (r Rule) Describe(value uint) string {
	field := r.Range.Extract(value)
	if int(field) < len(r.Labels) {
		return r.Labels[field]
	}
	return fmt.Sprintf("value %d", field)
}

// Mask builds a 0/1 image selecting accepted pixels of img's QA band.
func (r Rule) Mask(img *graph.Node) *graph.Node {
	band := graph.Invoke("Image.select", graph.Args{
		"input":         img,
		"bandSelectors": graph.Constant([]string{r.Band}),
	})
	return graph.Invoke("Image.lte", graph.Args{
		"image1": r.Range.ExtractImage(band),
		"image2": constantImage(r.MaxAccepted),
	})
}

func constantImage(v uint) *graph.Node {
	return graph.Invoke("Image.constant", graph.Args{"value": graph.Constant(v)})
}

// Documented MODIS quality conventions.
var (
	// MOD11A2QCDay is the mandatory QA field of the 8-day LST product.
	MOD11A2QCDay = Rule{
		Band:        "QC_Day",
		Range:       Range{From: 0, To: 1},
		MaxAccepted: 0,
		Labels: []string{
			"LST produced, good quality",
			"LST produced, other quality",
			"LST not produced due to cloud effects",
			"LST not produced primarily due to reasons other than cloud",
		},
	}
	// MOD13Q1SummaryQA is the pixel reliability field of the 16-day vegetation product.
	MOD13Q1SummaryQA = Rule{
		Band:        "SummaryQA",
		Range:       Range{From: 0, To: 1},
		MaxAccepted: 0,
		Labels: []string{
			"good data",
			"marginal data",
			"snow/ice",
			"cloudy",
		},
	}
)
