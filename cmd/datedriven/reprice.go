package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/notify"
	"datedriven/internal/repricing"
)

func newRepriceCmd(a *app) *cobra.Command {
	var (
		dryRun    bool
		priceOnly bool
		asJSON    bool
		tiers     bool
	)

	c := &cobra.Command{
		Use:   "reprice",
		Short: "Price every item against its nearest key date and push the new prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if tiers {
				a.cfg.Pricing.Tiers.Enabled = true
			}

			store, closeStore, err := bootstrap.Store(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer closeStore()

			r, err := bootstrap.Repricer(ctx, a.cfg, store, store, dryRun, a.log)
			if err != nil {
				return err
			}

			var report *repricing.Report
			if priceOnly {
				report, err = r.Price(ctx)
			} else {
				report, err = r.Run(ctx)
			}
			if report == nil {
				return err
			}

			if asJSON {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
				return err
			}
			body, ferr := notify.FormatReport(report)
			if ferr != nil {
				return ferr
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return err
		},
	}

	c.Flags().BoolVar(&dryRun, "dry-run", false, "log price updates instead of sending them")
	c.Flags().BoolVar(&priceOnly, "price-only", false, "compute recommendations without contacting the marketplace")
	c.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	c.Flags().BoolVar(&tiers, "tiers", false, "price from the model tier vote instead of the rule table")
	return c
}
