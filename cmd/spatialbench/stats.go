package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arkilian/spatialbench/internal/bench"
)

func newStatsCmd() *cobra.Command {
	var (
		output  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "stats <report.csv>...",
		Short: "Summarize samples reports written by bench",
		Long: `stats reads one or more reports in the samples format and writes the
per-query summary. With several files every row is prefixed with the
dataset name (the file name without its extension). Malformed rows are
skipped and counted.`,
		Example: `  spatialbench stats 1k.csv
  spatialbench stats 1k.csv 10k.csv 100k.csv -o summary.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets := make([]bench.Dataset, 0, len(args))
			for _, path := range args {
				d, err := readDataset(path)
				if err != nil {
					return err
				}
				if n := len(d.Skipped); n > 0 {
					cmd.PrintErrf("%s: skipped %d malformed rows\n", path, n)
					if verbose {
						for _, row := range d.Skipped {
							cmd.PrintErrf("  %q\n", row)
						}
					}
				}
				datasets = append(datasets, d)
			}

			w, closeFn, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if len(datasets) == 1 {
				err = bench.WriteSummary(w, datasets[0].Stats)
			} else {
				err = bench.WriteDatasets(w, datasets)
			}
			if err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Summary file (default stdout)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print skipped rows")
	return cmd
}

func readDataset(path string) (bench.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return bench.Dataset{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stats, skipped, err := bench.ReadSamples(f)
	if err != nil {
		return bench.Dataset{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return bench.Dataset{Name: bench.DatasetName(path), Stats: stats, Skipped: skipped}, nil
}
