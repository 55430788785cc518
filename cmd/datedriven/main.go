// cmd/datedriven/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"datedriven/internal/bootstrap"
	"datedriven/internal/common/config"
	"datedriven/internal/common/logger"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func (a *app) load() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFromFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}
	a.log = bootstrap.Logger(a.cfg)
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "datedriven",
		Short:         "Find key dates for inventory items and price listings by event proximity",
		Version:       fmt.Sprintf("%s (%s)", Version, CommitSHA),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default configs/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newFindDatesCmd(a))
	root.AddCommand(newRepriceCmd(a))
	root.AddCommand(newSyncCalendarCmd(a))
	root.AddCommand(newValidateRulesCmd(a))
	root.AddCommand(newImportInventoryCmd(a))
	return root
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
