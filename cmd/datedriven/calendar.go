package main

import (
	"context"

	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/calendar"
)

func newSyncCalendarCmd(a *app) *cobra.Command {
	var (
		planOnly bool
		upcoming bool
	)

	c := &cobra.Command{
		Use:   "sync-calendar",
		Short: "Create listing reminders ahead of each stored key date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			syncer, err := bootstrap.Calendar(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}

			if upcoming {
				listings, err := syncer.UpcomingListings(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), listings)
			}

			store, closeStore, err := bootstrap.Store(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer closeStore()

			items, err := calendar.LoadItemDates(ctx, store, store)
			if err != nil {
				return err
			}
			reminders := syncer.PlanReminders(items)
			if planOnly {
				return writeJSON(cmd.OutOrStdout(), reminders)
			}

			created, err := syncer.PushReminders(ctx, reminders)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{
				"planned": len(reminders),
				"created": created,
			})
		},
	}

	c.Flags().BoolVar(&planOnly, "plan-only", false, "print the reminders without creating events")
	c.Flags().BoolVar(&upcoming, "upcoming", false, "list upcoming listing reminders instead of syncing")
	return c
}
