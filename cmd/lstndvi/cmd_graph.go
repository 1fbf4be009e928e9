package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/region"
)

var (
	graphProduct string
	graphKind    string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the encoded expression of a request without sending it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p, err := cfg.Product(graphProduct)
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
		root, err := buildGraph(p, roi, w, graphKind, cfg.Scale)
		if err != nil {
			return err
		}
		out, err := graph.MarshalIndent(root)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphProduct, "product", "p", products.NDVI.Name, "product name")
	graphCmd.Flags().StringVarP(&graphKind, "kind", "k", "series", "series, mosaic, median or stack")
}

func buildGraph(p products.Product, roi *region.ROI, w region.Window, kind string, scale float64) (*graph.Node, error) {
	switch kind {
	case "series":
		n, _, err := p.MonthlySeries(roi, w, scale)
		return n, err
	case "mosaic":
		return p.QualityMosaic(roi, w, "")
	case "median":
		n, _, err := p.MonthlyMedian(roi, w)
		return n, err
	case "stack":
		n, _, err := p.MonthlyStack(roi, w)
		return n, err
	}
	return nil, fmt.Errorf("unknown graph kind %q (want series, mosaic, median or stack)", kind)
}
