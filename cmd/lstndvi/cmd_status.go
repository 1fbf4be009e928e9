package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	bannercolor "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forest-guardian/lst-ndvi/internal/export"
	"github.com/forest-guardian/lst-ndvi/internal/ledger"
)

var (
	statusLimit   int
	statusRefresh bool
)

var statusCmd = &cobra.Command{
	Use:   "status [id or operation]",
	Short: "Show submitted exports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		var svc *export.Service
		if statusRefresh || len(args) == 1 {
			client, err := newClient(ctx)
			if err != nil {
				return err
			}
			svc = export.NewService(client, l, logger)
		}

		if len(args) == 1 {
			rec, err := svc.Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			printRecords([]ledger.Record{rec})
			if rec.Error != "" {
				bannercolor.Red("%s", rec.Error)
			}
			return nil
		}

		records, err := l.List(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No exports submitted yet")
			return nil
		}
		if svc != nil {
			for i, rec := range records {
				if rec.Finished() {
					continue
				}
				if records[i], err = svc.Refresh(ctx, rec.ID); err != nil {
					return err
				}
			}
		}
		printRecords(records)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "number of exports to list, 0 for all")
	statusCmd.Flags().BoolVar(&statusRefresh, "refresh", false, "query Earth Engine for unfinished exports")
}

func printRecords(records []ledger.Record) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tSTATE\tDESTINATION\tSUBMITTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\tgs://%s/%s\t%s\n",
			r.ID, r.Description, r.State, r.Bucket, r.Prefix, r.SubmittedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
