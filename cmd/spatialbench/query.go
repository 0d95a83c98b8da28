package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/export"
	"github.com/arkilian/spatialbench/internal/generate"
	"github.com/arkilian/spatialbench/pkg/types"
)

type queryFlags struct {
	oid      string
	point    string
	box      string
	space    string
	labels   []string
	pageSize int
	bucket   int
	universe bool
	output   string
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Export the results of exploration queries as JSON lines",
		Long: `query runs one or more exploration queries and writes every returned point
and query bounding box as a JSON line, ready for a renderer. Queries run in
the order oid, point, box, space, labels.`,
		Example: `  spatialbench query -c points -u http://localhost:8983/solr --oid oid-1 --universe
  spatialbench query -c points -u http://localhost:8983/solr --box 0,0,0:0.1,0.1,0.1
  spatialbench query -c points -u http://localhost:8983/solr --space brain --page-size 1000 --bucket 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.oid, "oid", "", "Export the points of one label")
	fl.StringVar(&f.point, "point", "", "Export the points at a position, e.g. 0.1,0.2,0.3")
	fl.StringVar(&f.box, "box", "", "Export the points in a box, e.g. 0,0,0:1,1,1")
	fl.StringVar(&f.space, "space", "", "Export a reference space page by page")
	fl.StringSliceVar(&f.labels, "labels", nil, "Export the points of several labels and their union box")
	fl.IntVar(&f.pageSize, "page-size", 1000, "Rows per page for --space")
	fl.IntVar(&f.bucket, "bucket", 1, "Average every N points of a page for --space (1 keeps all)")
	fl.BoolVar(&f.universe, "universe", false, "Also export the bounding box of the whole core")
	fl.StringVarP(&f.output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func runQuery(cmd *cobra.Command, g *globalFlags, f *queryFlags) error {
	if f.oid == "" && f.point == "" && f.box == "" && f.space == "" && len(f.labels) == 0 {
		cmd.PrintErrln(cmd.UsageString())
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter,
			"one of --oid, --point, --box, --space or --labels is required")
	}

	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}
	if err := finishConfig(cmd, cfg, true); err != nil {
		return err
	}

	var (
		point types.Point
		box   types.BoundingBox
	)
	if f.point != "" {
		if point, err = generate.ParsePoint(f.point); err != nil {
			return err
		}
	}
	if f.box != "" {
		if box, err = parseBox(f.box); err != nil {
			return err
		}
	}

	_, m := newMetrics()
	logger, err := newLogger(cmd, cfg, m)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(cmd, cfg, logger, m, nil)
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput(cmd, f.output)
	if err != nil {
		return err
	}
	defer closeFn()

	out := export.NewWriter(w)
	ex := export.NewExplorer(client, cfg.Index.Core, out, export.Options{Universe: f.universe, Logger: logger})
	ctx := cmd.Context()

	if f.oid != "" {
		if err := ex.Label(ctx, types.Label(f.oid)); err != nil {
			return err
		}
	}
	if point != nil {
		if err := ex.Point(ctx, point); err != nil {
			return err
		}
	}
	if f.box != "" {
		if err := ex.Box(ctx, box); err != nil {
			return err
		}
	}
	if f.space != "" {
		if err := ex.Space(ctx, types.ReferenceSpace(f.space), f.bucket, f.pageSize); err != nil {
			return err
		}
	}
	if len(f.labels) > 0 {
		labels := make([]types.Label, len(f.labels))
		for i, l := range f.labels {
			labels[i] = types.Label(l)
		}
		if err := ex.Labels(ctx, labels); err != nil {
			return err
		}
	}

	logger.Info("export finished", zap.Int("records", out.Count()))
	return closeFn()
}
