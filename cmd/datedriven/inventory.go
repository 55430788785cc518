package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/pipeline"
)

func newImportInventoryCmd(a *app) *cobra.Command {
	var check bool

	c := &cobra.Command{
		Use:   "import-inventory FILE",
		Short: "Load inventory items from a YAML file into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			items, err := pipeline.ParseInventory(raw)
			if err != nil {
				return err
			}
			if check {
				fmt.Fprintf(cmd.OutOrStdout(), "%d items ok\n", len(items))
				return nil
			}

			store, closeStore, err := bootstrap.Store(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.UpsertItems(cmd.Context(), items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", len(items))
			return nil
		},
	}

	c.Flags().BoolVar(&check, "check", false, "parse and validate the file without writing")
	return c
}
