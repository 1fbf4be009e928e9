package region

import (
	"errors"
	"fmt"
	"time"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
)

const DateLayout = "2006-01-02"

var ErrEmptyWindow = errors.New("region: empty date window")

// Window is a half-open date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	w := Window{Start: s, End: e}
	if !w.Start.Before(w.End) {
		return Window{}, fmt.Errorf("%w: %s", ErrEmptyWindow, w)
	}
	return w, nil
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + "/" + w.End.Format(DateLayout)
}

// Months splits w into calendar months, clipping the first and last
// month to the window.
func (w Window) Months() []Window {
	if !w.Start.Before(w.End) {
		return nil
	}
	var months []Window
	start := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := start; m.Before(w.End); m = m.AddDate(0, 1, 0) {
		month := Window{Start: m, End: m.AddDate(0, 1, 0)}
		if month.Start.Before(w.Start) {
			month.Start = w.Start
		}
		if month.End.After(w.End) {
			month.End = w.End
		}
		months = append(months, month)
	}
	return months
}

// Node is the DateRange value used by Filter.dateRangeContains.
func (w Window) Node() *graph.Node {
	return graph.Invoke("DateRange", graph.Args{
		"start": date(w.Start),
		"end":   date(w.End),
	})
}

func date(t time.Time) *graph.Node {
	return graph.Invoke("Date", graph.Args{"value": graph.Constant(t.UnixMilli())})
}
