package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/keydates"
	"datedriven/internal/pricing"
)

func newValidateRulesCmd(a *app) *cobra.Command {
	var (
		today string
		event string
	)

	c := &cobra.Command{
		Use:   "validate-rules",
		Short: "Check the pricing rule table and optionally evaluate it for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, loc, err := bootstrap.Engine(a.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range engine.Rules().Rules() {
				fmt.Fprintln(out, r.String())
			}
			fmt.Fprintf(out, "rule table ok (lookback %d days, %s)\n", a.cfg.Pricing.LookbackDays, loc)

			if event == "" {
				return nil
			}
			md, err := keydates.ParseMonthDay(event)
			if err != nil {
				return fmt.Errorf("invalid --event: %w", err)
			}
			now := time.Now().In(loc)
			if today != "" {
				if now, err = time.ParseInLocation("2006-01-02", today, loc); err != nil {
					return fmt.Errorf("invalid --today (want YYYY-MM-DD): %w", err)
				}
			}
			occurrence := pricing.NextOccurrence(now, md, a.cfg.Pricing.LookbackDays)
			fmt.Fprintf(out, "%s: %d days, multiplier %.2f\n",
				occurrence.Format("2006-01-02"),
				pricing.DaysUntil(now, occurrence),
				pricing.ComputeMultiplier(now, occurrence, engine.Rules()),
			)
			return nil
		},
	}

	c.Flags().StringVar(&today, "today", "", "evaluate as of this date (YYYY-MM-DD)")
	c.Flags().StringVar(&event, "event", "", "event date to price against, e.g. \"January 17\"")
	return c
}
