package export

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/index"
	"github.com/arkilian/spatialbench/internal/logging"
	"github.com/arkilian/spatialbench/internal/query/filter"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Searcher is the subset of the index client the explorer needs.
type Searcher interface {
	Fetch(ctx context.Context, core string, q index.Query) (*index.Response, error)
	Cardinality(ctx context.Context, core string, q index.Query) (int, error)
	Page(ctx context.Context, core string, q index.Query, start, rows int) (*index.Response, error)
	SpatialMBB(ctx context.Context, core, q string, dims int) (types.BoundingBox, error)
	Encoder() *filter.Encoder
	Dimensions() int
}

// Options configures an Explorer.
type Options struct {
	// Universe adds the bounding box of the whole core to every export
	Universe bool

	// FieldList restricts the fields fetched for points
	FieldList []string

	Logger *zap.Logger
}

// Explorer runs exploration queries and writes their results as records.
type Explorer struct {
	client Searcher
	core   string
	out    *Writer
	opts   Options
	logger *zap.Logger
}

// NewExplorer creates an explorer over core writing to out.
func NewExplorer(client Searcher, core string, out *Writer, opts Options) *Explorer {
	return &Explorer{
		client: client,
		core:   core,
		out:    out,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("export"),
	}
}

func (e *Explorer) mbb(ctx context.Context, q filter.Filter) (types.BoundingBox, error) {
	return e.client.SpatialMBB(ctx, e.core, q.String(), e.client.Dimensions())
}

func (e *Explorer) universe(ctx context.Context) error {
	if !e.opts.Universe {
		return nil
	}
	box, err := e.client.SpatialMBB(ctx, e.core, index.MatchAll, e.client.Dimensions())
	if err != nil {
		return err
	}
	return e.out.Box(RoleUniverse, "", box)
}

// Label exports every point of one label and the label's bounding box.
func (e *Explorer) Label(ctx context.Context, label types.Label) error {
	if err := e.universe(ctx); err != nil {
		return err
	}
	resp, err := e.client.Fetch(ctx, e.core, index.Query{ID: label, FieldList: e.opts.FieldList})
	if err != nil {
		return err
	}
	if len(resp.Docs) == 0 {
		e.logger.Warn("label has no points", zap.String("label", string(label)))
		return nil
	}
	box, err := e.mbb(ctx, e.client.Encoder().LabelToFilter(label))
	if err != nil {
		return err
	}
	if err := e.out.Box(RoleQuery, string(label), box); err != nil {
		return err
	}
	return e.out.Points(string(label), resp.Docs)
}

// Point exports every document at position p, grouped by label.
func (e *Explorer) Point(ctx context.Context, p types.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := e.universe(ctx); err != nil {
		return err
	}
	resp, err := e.client.Fetch(ctx, e.core, index.Query{Point: p})
	if err != nil {
		return err
	}
	if err := e.out.Box(RoleQuery, "", types.BoundingBox{Low: p, High: p}); err != nil {
		return err
	}
	for _, d := range resp.Docs {
		if err := e.out.Points(string(d.ID()), []types.Document{d}); err != nil {
			return err
		}
	}
	return nil
}

// Box exports every document inside b.
func (e *Explorer) Box(ctx context.Context, b types.BoundingBox) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := e.universe(ctx); err != nil {
		return err
	}
	resp, err := e.client.Fetch(ctx, e.core, index.Query{Box: &b, FieldList: e.opts.FieldList})
	if err != nil {
		return err
	}
	if err := e.out.Box(RoleQuery, "", b); err != nil {
		return err
	}
	return e.out.Points("", resp.Docs)
}

// Space exports a reference space page by page. Each page of pageSize rows is
// reduced by BucketAverage(bucket) and paired with one slab of the space's
// bounding box along the first axis, so a renderer can color pages apart.
func (e *Explorer) Space(ctx context.Context, space types.ReferenceSpace, bucket, pageSize int) error {
	if pageSize < 1 {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidFilter,
			fmt.Sprintf("page size must be positive, got %d", pageSize))
	}
	if err := e.universe(ctx); err != nil {
		return err
	}

	q := index.Query{Space: space, FieldList: e.opts.FieldList}
	total, err := e.client.Cardinality(ctx, e.core, q)
	if err != nil {
		return err
	}
	if total == 0 {
		e.logger.Warn("reference space has no points", zap.String("space", string(space)))
		return nil
	}
	box, err := e.mbb(ctx, e.client.Encoder().SpaceToFilter(space))
	if err != nil {
		return err
	}

	pages := index.PageCount(total, pageSize)
	slabs := Slabs(box, pages)
	for page := 0; page < pages; page++ {
		resp, err := e.client.Page(ctx, e.core, q, page*pageSize, pageSize)
		if err != nil {
			return err
		}
		group := strconv.Itoa(page)
		if err := e.out.Points(group, BucketAverage(resp.Docs, bucket)); err != nil {
			return err
		}
		if err := e.out.Box(RoleSlice, group, slabs[page]); err != nil {
			return err
		}
	}

	e.logger.Debug("space exported",
		zap.String("space", string(space)),
		zap.Int("points", total),
		zap.Int("pages", pages),
	)
	return nil
}

// Labels exports the points of each label separately, followed by the
// bounding box of all the labels together.
func (e *Explorer) Labels(ctx context.Context, labels []types.Label) error {
	if len(labels) == 0 {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "at least one label is required")
	}
	if err := e.universe(ctx); err != nil {
		return err
	}

	for _, l := range labels {
		resp, err := e.client.Fetch(ctx, e.core, index.Query{ID: l, FieldList: e.opts.FieldList})
		if err != nil {
			return err
		}
		if err := e.out.Points(string(l), resp.Docs); err != nil {
			return err
		}
	}

	box, err := e.mbb(ctx, e.client.Encoder().LabelsToFilter(labels))
	if err != nil {
		return err
	}
	return e.out.Box(RoleQuery, "", box)
}
