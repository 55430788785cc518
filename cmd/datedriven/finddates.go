package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/pipeline"
)

func newFindDatesCmd(a *app) *cobra.Command {
	var (
		name          string
		subject       string
		inventoryFile string
		noPersist     bool
	)

	c := &cobra.Command{
		Use:   "find-dates",
		Short: "Query every source and print or persist the ranked key dates",
		Long: "With --name, looks up a single item and prints its ranked dates. " +
			"Otherwise runs a batch over the inventory (Postgres, or --inventory FILE) " +
			"and persists the results unless --no-persist is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rdb, closeRedis := bootstrap.Redis(ctx, a.cfg, a.log)
			defer closeRedis()
			set, err := bootstrap.Sources(a.cfg, rdb, a.log)
			if err != nil {
				return err
			}

			if name != "" {
				d := bootstrap.Driver(a.cfg, nil, set, nil, a.log, nil)
				res := d.ProcessItem(ctx, uuid.New().String(), pipeline.InventoryItem{
					ID:      "adhoc",
					Name:    name,
					Subject: subject,
				})
				return writeJSON(cmd.OutOrStdout(), res)
			}

			var (
				inv   pipeline.InventorySource
				sinks []pipeline.ResultSink
			)
			if inventoryFile != "" {
				inv = pipeline.NewFileInventory(inventoryFile)
			}
			if !noPersist || inv == nil {
				store, closeStore, err := bootstrap.Store(ctx, a.cfg, a.log)
				if err != nil {
					return err
				}
				defer closeStore()
				if inv == nil {
					inv = store
				}
				if !noPersist {
					if sinks, err = bootstrap.Sinks(a.cfg, store, a.log); err != nil {
						return err
					}
				}
			}

			obs := bootstrap.Observability(a.cfg)
			defer obs.Shutdown()

			report, err := bootstrap.Driver(a.cfg, inv, set, sinks, a.log, obs).Run(ctx)
			if report != nil {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}

	c.Flags().StringVar(&name, "name", "", "look up a single item by name")
	c.Flags().StringVar(&subject, "subject", "", "subject for --name (extracted from the name when empty)")
	c.Flags().StringVar(&inventoryFile, "inventory", "", "read items from a YAML file instead of Postgres")
	c.Flags().BoolVar(&noPersist, "no-persist", false, "print results without writing them")
	return c
}
