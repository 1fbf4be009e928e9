package main

import (
	"fmt"
	"path/filepath"
	"strings"

	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest-guardian/lst-ndvi/internal/export"
	"github.com/forest-guardian/lst-ndvi/internal/ledger"
	"github.com/forest-guardian/lst-ndvi/internal/products"
)

var (
	exportProducts  []string
	exportComposite string
	exportBucket    string
	exportFileName  string
	exportWait      bool
	exportFetch     bool
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export composites to Cloud Storage as GeoTIFF",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		composite, err := export.ParseComposite(exportComposite)
		if err != nil {
			return err
		}
		selected, err := selectProducts(cfg, exportProducts)
		if err != nil {
			return err
		}
		if exportFileName != "" && len(selected) > 1 {
			return fmt.Errorf("--name needs a single --product, got %d", len(selected))
		}
		roi, err := cfg.ROI()
		if err != nil {
			return err
		}
		w, err := cfg.Window()
		if err != nil {
			return err
		}
		bucket := cfg.Export.Bucket
		if exportBucket != "" {
			bucket = exportBucket
		}

		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()
		svc := export.NewService(client, l, logger,
			export.WithPollInterval(cfg.Export.PollInterval),
			export.WithWorkers(cfg.Export.Workers))

		var submitted []ledger.Record
		for _, p := range selected {
			rec, err := svc.Submit(ctx, export.Request{
				Product:     p,
				Composite:   composite,
				ROI:         roi,
				Window:      w,
				Bucket:      bucket,
				Folder:      cfg.Export.Folder,
				FileName:    exportFileName,
				ScaleMeters: cfg.Export.Scale,
				CRS:         cfg.Export.CRS,
				MaxPixels:   cfg.Export.MaxPixels,
			})
			if err != nil {
				return err
			}
			bannercolor.Green("Submitted %s (%s)", rec.Description, rec.ID)
			submitted = append(submitted, rec)
		}
		if !exportWait && !exportFetch {
			fmt.Println("Follow progress with: lstndvi status")
			return nil
		}

		for _, rec := range submitted {
			rec, err := svc.Wait(ctx, rec)
			if err != nil {
				return err
			}
			bannercolor.Green("%s %s", rec.Description, strings.ToLower(rec.State))
			if exportFetch {
				p, err := cfg.Product(rec.Product)
				if err != nil {
					return err
				}
				if err := fetchAndPreview(cmd, rec, p); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportProducts, "product", "p", nil, "products to export (default all)")
	exportCmd.Flags().StringVarP(&exportComposite, "composite", "c", string(export.Mosaic), "mosaic or median")
	exportCmd.Flags().StringVar(&exportBucket, "bucket", "", "destination bucket (default export.bucket)")
	exportCmd.Flags().StringVar(&exportFileName, "name", "", "file name prefix (default product_composite_start_end)")
	exportCmd.Flags().BoolVar(&exportWait, "wait", false, "wait for the export to finish")
	exportCmd.Flags().BoolVar(&exportFetch, "fetch", false, "wait, then download the GeoTIFF and render a preview")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "download directory (default $ROOT_PATH/data/exports)")
}

func fetchAndPreview(cmd *cobra.Command, rec ledger.Record, p products.Product) error {
	dir, err := outputDir(exportOut, "exports")
	if err != nil {
		return err
	}
	fetcher, err := export.NewFetcher(cmd.Context(), cfg.Credentials, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	paths, err := fetcher.Fetch(cmd.Context(), rec.Bucket, rec.Prefix, dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		png := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
		st, err := export.Preview(path, png, 1, p)
		if err != nil {
			logger.Warn("preview failed", zap.String("path", path), zap.Error(err))
			continue
		}
		bannercolor.Green("%s: %dx%d, %d valid pixels, mean %.3f %s", filepath.Base(path), st.Width, st.Height, st.Valid, st.Mean, p.Unit)
	}
	return nil
}
