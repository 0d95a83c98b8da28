package main

import (
	"github.com/spf13/cobra"

	"github.com/arkilian/spatialbench/internal/generate"
	"github.com/arkilian/spatialbench/pkg/types"
)

func newGenerateCmd() *cobra.Command {
	var (
		opts   generate.Options
		space  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random point dataset as a JSON array of features",
		Example: `  spatialbench generate -o 100 -p 1000 > points.json
  spatialbench generate -o 10 -p 50 --space brain --seed 42 --output points.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Space = types.ReferenceSpace(space)
			if err := opts.Validate(); err != nil {
				cmd.PrintErrln(cmd.UsageString())
				return err
			}
			w, closeFn, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if _, err := generate.Write(w, opts); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&opts.OIDs, "oids", "o", 0, "Number of labels (oids)")
	fl.IntVarP(&opts.PointsPerOID, "points", "p", 0, "Number of points per label")
	fl.IntVarP(&opts.Dimensions, "dimensions", "d", 3, "Coordinates per point")
	fl.StringVar(&space, "space", "", "Reference space name (default random)")
	fl.Int64Var(&opts.Seed, "seed", 0, "Random seed (0 picks one)")
	fl.StringVar(&output, "output", "", "Output file (default stdout)")
	return cmd
}
