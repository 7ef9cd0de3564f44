/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the rental ledger. Loads configuration, builds
  the logger and store, and dispatches to a subcommand.

COMMANDS:
  serve      Run the HTTP API and the occupancy scheduler
  arrears    Print the arrears report and exit
  reconcile  Recompute every house's occupied flag and exit

GLOBAL FLAGS:
  --config     Config file (default: ./rentledger.yml if present)
  --db         SQLite database path, ":memory:" for a throwaway database
  --log-level  debug, info, warn, error

  Flags override RENTLEDGER_* environment variables, which override the
  config file. See config/config.go.

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/ledger.db

  # Run on different port with a demo-only database
  ./server serve --port=3000 --db=":memory:"

  # Arrears for one building as of month end
  ./server arrears --building=2 --as-of=2025-01-31

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/config"
	"github.com/warp/rental-ledger/logger"
	"github.com/warp/rental-ledger/store/sqlite"
)

func main() {
	v := config.New()
	rootCmd := &cobra.Command{
		Use:           "rentledger",
		Short:         "Rental property ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		ServeCmd(v),
		ArrearsCmd(v),
		ReconcileCmd(v),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs once configuration is resolved.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	store   *sqlite.Store
	buckets []arrears.Bucket
}

func bootstrap(cmd *cobra.Command, v *viper.Viper) (*app, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database opened", zap.String("path", cfg.Database.Path))

	return &app{cfg: cfg, log: log, store: store, buckets: agingBuckets(cfg.Arrears.AgingBuckets)}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func agingBuckets(in []config.AgingBucket) []arrears.Bucket {
	out := make([]arrears.Bucket, len(in))
	for i, b := range in {
		out[i] = arrears.Bucket{Label: b.Label, MinDays: b.MinDays, MaxDays: b.MaxDays}
	}
	return out
}
