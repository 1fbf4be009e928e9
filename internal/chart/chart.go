// Package chart renders monthly series as an interactive HTML chart or a
// static PNG, each with a least-squares trend line.
package chart

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

type Options struct {
	Title      string `yaml:"title"`
	PointSize  int    `yaml:"point_size"`
	PointColor string `yaml:"point_color"`
	TrendColor string `yaml:"trend_color"`
	// Trend disables the trend line when false.
	Trend bool `yaml:"trend"`
}

func DefaultOptions() Options {
	return Options{
		PointSize:  8,
		PointColor: "#e37d05",
		TrendColor: "#1d6b99",
		Trend:      true,
	}
}

func parseColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return c, nil
}
