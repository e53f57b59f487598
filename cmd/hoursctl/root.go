package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hoursboard/internal/cli"
	"hoursboard/internal/log"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hoursctl",
		Short: "Summarize hours spreadsheets",
		Long: `hoursctl loads an hours spreadsheet (xlsx, xls or csv), applies the same
filters as the dashboard and prints the aggregated hours.

Examples:
  hoursctl summarize hours.xlsx
  hoursctl summarize hours.xlsx --mode bar --x projectName --output json
  hoursctl summarize hours.csv --start 2024-01-01 --department dev --png out.png
  hoursctl watch hours.xlsx --mode grouped-bar --x department --color user
  hoursctl columns hours.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSummarizeCmd(o),
		newWatchCmd(o),
		newColumnsCmd(),
	)
	return cmd
}

// logger writes to stderr so that stdout carries only the report.
func (o *rootOptions) logger() *log.Logger {
	cfg := log.DefaultConfig()
	if l, err := log.ParseLevel(o.logLevel); err == nil {
		cfg.Level = l
	} else {
		cfg.Level = slog.LevelWarn
	}
	cfg.Output = os.Stderr
	cfg.Component = log.ComponentCLI
	return log.New(cfg)
}
