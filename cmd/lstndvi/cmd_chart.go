package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forest-guardian/lst-ndvi/internal/cache"
	"github.com/forest-guardian/lst-ndvi/internal/chart"
	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/region"
	"github.com/forest-guardian/lst-ndvi/internal/timeseries"
)

var (
	chartProducts []string
	chartOut      string
	chartNoCache  bool
	chartCacheAge time.Duration
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Compute the monthly regional mean of each product and chart it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		selected, err := selectProducts(cfg, chartProducts)
		if err != nil {
			return err
		}
		roi, err := cfg.ROI()
		if err != nil {
			return err
		}
		w, err := cfg.Window()
		if err != nil {
			return err
		}
		dir, err := outputDir(chartOut, "charts")
		if err != nil {
			return err
		}
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		var seriesCache *cache.FileCache[json.RawMessage]
		if !chartNoCache {
			seriesCache = cache.NewFileCache[json.RawMessage]("series", chartCacheAge)
		}

		results := make([]timeseries.Series, len(selected))
		g, ctx := errgroup.WithContext(cmd.Context())
		for i, p := range selected {
			i, p := i, p
			g.Go(func() error {
				s, err := fetchSeries(ctx, client, seriesCache, p, roi, w, cfg.Scale)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Name, err)
				}
				results[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, s := range results {
			if err := writeSeries(dir, s, chartOptions(s)); err != nil {
				return err
			}
			printSummary(s)
		}
		return nil
	},
}

func init() {
	chartCmd.Flags().StringSliceVarP(&chartProducts, "product", "p", nil, "products to chart (default all)")
	chartCmd.Flags().StringVarP(&chartOut, "out", "o", "", "output directory (default $ROOT_PATH/data/charts)")
	chartCmd.Flags().BoolVar(&chartNoCache, "no-cache", false, "always query Earth Engine")
	chartCmd.Flags().DurationVar(&chartCacheAge, "cache-age", 24*time.Hour, "reuse cached results younger than this")
}

type valueComputer interface {
	ComputeValue(ctx context.Context, expr *graph.Expression) (json.RawMessage, error)
}

// fetchSeries evaluates the monthly series of p. Identical expressions are
// answered from c when it is set.
func fetchSeries(ctx context.Context, vc valueComputer, c *cache.FileCache[json.RawMessage], p products.Product, roi *region.ROI, w region.Window, scale float64) (timeseries.Series, error) {
	root, months, err := p.MonthlySeries(roi, w, scale)
	if err != nil {
		return timeseries.Series{}, err
	}
	expr, err := graph.Encode(root)
	if err != nil {
		return timeseries.Series{}, err
	}

	var key string
	if c != nil {
		body, err := json.Marshal(expr)
		if err != nil {
			return timeseries.Series{}, err
		}
		key = c.GenerateKey(p.Name, body)
		if raw, ok := c.Get(key); ok {
			logger.Debug("series cache hit", zap.String("product", p.Name), zap.String("key", key))
			return timeseries.Decode(raw, p.Name, p.Band, p.Unit, months)
		}
	}

	logger.Info("computing monthly series", zap.String("product", p.Name), zap.Int("months", len(months)))
	raw, err := vc.ComputeValue(ctx, expr)
	if err != nil {
		return timeseries.Series{}, err
	}
	s, err := timeseries.Decode(raw, p.Name, p.Band, p.Unit, months)
	if err != nil {
		return s, err
	}
	if c != nil {
		if err := c.Set(key, raw); err != nil {
			logger.Warn("failed to cache series", zap.String("product", p.Name), zap.Error(err))
		}
	}
	return s, nil
}

func chartOptions(s timeseries.Series) chart.Options {
	o := cfg.Chart
	if o.Title == "" {
		o.Title = fmt.Sprintf("%s monthly median (%s)", strings.ToUpper(s.Product), s.Unit)
	}
	return o
}

// writeSeries saves the CSV, the interactive chart and the static chart
// of s into dir.
func writeSeries(dir string, s timeseries.Series, o chart.Options) error {
	csvPath := filepath.Join(dir, s.Product+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	if err := s.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", csvPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	htmlPath := filepath.Join(dir, s.Product+".html")
	f, err = os.Create(htmlPath)
	if err != nil {
		return err
	}
	if err := chart.RenderHTML(f, s, o); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", htmlPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if len(s.ValidPoints()) == 0 {
		logger.Warn("every month is masked, skipping static chart", zap.String("product", s.Product))
		return nil
	}
	pngPath := filepath.Join(dir, s.Product+".png")
	if err := chart.RenderPNG(pngPath, s, o); err != nil {
		return fmt.Errorf("failed to render %s: %w", pngPath, err)
	}
	logger.Info("series written", zap.String("product", s.Product), zap.String("dir", dir))
	return nil
}

func printSummary(s timeseries.Series) {
	sum := s.Summary()
	bannercolor.Green("%s: %d months, %d masked", strings.ToUpper(s.Product), sum.Count+sum.Masked, sum.Masked)
	if sum.Count == 0 {
		return
	}
	fmt.Printf("  min %.3f  max %.3f  mean %.3f %s\n", sum.Min, sum.Max, sum.Mean, s.Unit)
	if slope, _, ok := s.Trend(); ok {
		fmt.Printf("  trend %+.4f %s per year\n", slope*365.25, s.Unit)
	}
}
