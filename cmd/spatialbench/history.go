package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkilian/spatialbench/internal/bench"
	"github.com/arkilian/spatialbench/internal/catalog"
	"github.com/arkilian/spatialbench/internal/logging"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded benchmark runs",
	}
	cmd.PersistentFlags().StringVar(&path, "history", "", "SQLite run-history database")

	open := func(cmd *cobra.Command) (*catalog.SQLiteCatalog, error) {
		cfg, err := loadConfig(cmd, g)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("history") {
			cfg.History.Path = path
		}
		if cfg.History.Path == "" {
			cmd.PrintErrln(cmd.UsageString())
			return nil, fmt.Errorf("--history is required")
		}
		return catalog.NewCatalog(cfg.History.Path, logging.DiscardLogger())
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := open(cmd)
			if err != nil {
				return err
			}
			defer cat.Close()

			runs, err := cat.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCORE\tMODE\tWORKERS\tSAMPLES\tSTARTED\tSTATUS")
			for _, r := range runs {
				status := "ok"
				if r.Failed() {
					status = fmt.Sprintf("%d failures", len(r.Failures))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.RunID, r.Core, r.Mode, r.Workers, r.Samples, r.StartedAt.Format(time.RFC3339), status)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0 for all)")

	var format string
	show := &cobra.Command{
		Use:   "show <run>",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := open(cmd)
			if err != nil {
				return err
			}
			defer cat.Close()

			run, err := cat.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			stats, err := cat.Stats(cmd.Context(), run.RunID)
			if err != nil {
				return err
			}
			for _, f := range run.Failures {
				cmd.PrintErrln("failure:", f)
			}
			return bench.WriteReport(cmd.OutOrStdout(), format, stats)
		},
	}
	show.Flags().StringVar(&format, "format", bench.FormatSummary, "Report format: samples, summary")

	cmd.AddCommand(list, show)
	return cmd
}
