package main

import (
	"fmt"
	"io"
	"strconv"

	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forest-guardian/lst-ndvi/internal/products"
)

var qaProduct string

var qaCmd = &cobra.Command{
	Use:   "qa VALUE...",
	Short: "Decode QA band values and show whether pixels are kept",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cfg.Product(qaProduct)
		if err != nil {
			return err
		}
		return describeQA(cmd.OutOrStdout(), p, args)
	},
}

func init() {
	qaCmd.Flags().StringVarP(&qaProduct, "product", "p", products.LST.Name, "product whose QA rule to apply")
}

// describeQA accepts decimal, 0x hex and 0b binary values.
func describeQA(w io.Writer, p products.Product, values []string) error {
	rule := p.QA
	if err := rule.Validate(); err != nil {
		return err
	}
	for _, s := range values {
		v, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid QA value %q: %w", s, err)
		}
		field := rule.Range.Extract(uint(v))
		verdict := bannercolor.GreenString("kept")
		if !rule.Accepts(uint(v)) {
			verdict = bannercolor.RedString("masked")
		}
		fmt.Fprintf(w, "%s=%s bits %d-%d=%d %s: %s\n",
			rule.Band, s, rule.Range.From, rule.Range.To, field, verdict, rule.Describe(uint(v)))
	}
	return nil
}
