package main

import (
	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forest-guardian/lst-ndvi/internal/export"
)

var (
	downloadProducts []string
	downloadScale    float64
	downloadOut      string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the monthly median composites of a small region directly",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		selected, err := selectProducts(cfg, downloadProducts)
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
		scale := cfg.Export.Scale
		if downloadScale > 0 {
			scale = downloadScale
		}
		dir, err := outputDir(downloadOut, "composites")
		if err != nil {
			return err
		}

		var jobs []export.Job
		for _, p := range selected {
			pj, err := export.MonthlyJobs(p, roi, w, scale)
			if err != nil {
				return err
			}
			jobs = append(jobs, pj...)
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()
		svc := export.NewService(client, l, logger, export.WithWorkers(cfg.Export.Workers))

		paths, err := svc.Download(cmd.Context(), jobs, dir)
		if err != nil {
			return err
		}
		bannercolor.Green("Downloaded %d composites to %s", len(paths), dir)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringSliceVarP(&downloadProducts, "product", "p", nil, "products to download (default all)")
	downloadCmd.Flags().Float64Var(&downloadScale, "scale", 0, "pixel size in metres (default export.scale)")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", "", "output directory (default $ROOT_PATH/data/composites)")
}
