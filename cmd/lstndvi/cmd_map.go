package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest-guardian/lst-ndvi/internal/ee"
	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/mapview"
)

var (
	mapProducts []string
	mapOut      string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Write a web map with the quality mosaic of each product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		selected, err := selectProducts(cfg, mapProducts)
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
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		bounds, known := roi.Bounds()
		page := mapview.NewPage(fmt.Sprintf("LST / NDVI %s", w), bounds, known)
		if c, ok := roi.Centroid(); ok {
			page.Center = c
		}
		for _, p := range selected {
			mosaic, err := p.QualityMosaic(roi, w, "")
			if err != nil {
				return err
			}
			expr, err := graph.Encode(p.Visualize(mosaic))
			if err != nil {
				return err
			}
			m, err := client.CreateMap(cmd.Context(), ee.MapRequest{Expression: expr})
			if err != nil {
				return fmt.Errorf("failed to create %s map: %w", p.Name, err)
			}
			logger.Debug("map created", zap.String("product", p.Name), zap.String("name", m.Name))
			page.AddLayer(strings.ToUpper(p.Name), m.TileURL())
		}

		out := mapOut
		if out == "" {
			dir, err := outputDir("", "maps")
			if err != nil {
				return err
			}
			out = filepath.Join(dir, "map.html")
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := page.Render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		bannercolor.Green("Map written to %s", out)
		return nil
	},
}

func init() {
	mapCmd.Flags().StringSliceVarP(&mapProducts, "product", "p", nil, "products to show (default all)")
	mapCmd.Flags().StringVarP(&mapOut, "out", "o", "", "output file (default $ROOT_PATH/data/maps/map.html)")
}
