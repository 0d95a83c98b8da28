package bench

import (
	"context"
	"fmt"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/index"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Searcher is the subset of the index client the standard queries use.
type Searcher interface {
	Fetch(ctx context.Context, core string, q index.Query) (*index.Response, error)
	ListField(ctx context.Context, core, field string) ([]string, error)
}

// Discovery holds the dataset facts the standard queries are built from.
type Discovery struct {
	Labels     []types.Label
	Spaces     []types.ReferenceSpace
	FirstPoint types.Point
}

// Discover lists the labels and reference spaces present in core and reads
// the position of the first document of the first label.
func Discover(ctx context.Context, s Searcher, core, idField, spaceField string, dims int) (*Discovery, error) {
	oids, err := s.ListField(ctx, core, idField)
	if err != nil {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery, "failed to list labels", err)
	}
	if len(oids) == 0 {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery, fmt.Sprintf("core %q has no labels", core), nil)
	}
	spaces, err := s.ListField(ctx, core, spaceField)
	if err != nil {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery, "failed to list reference spaces", err)
	}
	if len(spaces) == 0 {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery, fmt.Sprintf("core %q has no reference spaces", core), nil)
	}

	d := &Discovery{
		Labels: make([]types.Label, len(oids)),
		Spaces: make([]types.ReferenceSpace, len(spaces)),
	}
	for i, o := range oids {
		d.Labels[i] = types.Label(o)
	}
	for i, s := range spaces {
		d.Spaces[i] = types.ReferenceSpace(s)
	}

	first, err := s.Fetch(ctx, core, index.Query{ID: d.Labels[0]})
	if err != nil {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery, "failed to read the first label", err)
	}
	if len(first.Docs) == 0 {
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeDiscovery,
			fmt.Sprintf("label %q has no documents", d.Labels[0]), nil)
	}
	p := first.Docs[0].Coordinates()
	if len(p) > dims {
		p = p[:dims]
	}
	d.FirstPoint = p
	return d, nil
}

// NamedQuery is a labelled index query with its benchmark function.
type NamedQuery struct {
	Label string
	Query index.Query
}

// Func returns the benchmark function fetching every matching document.
func (n NamedQuery) Func(s Searcher, core string) QueryFunc {
	q := n.Query
	return func(ctx context.Context) (int, error) {
		resp, err := s.Fetch(ctx, core, q)
		if err != nil {
			return 0, err
		}
		return len(resp.Docs), nil
	}
}

// StandardQueries returns the five reference query types:
// Q1 one label, Q2 one position, Q3 one reference space, Q4 one box and
// Q5 a union of labels (the third to fifth, or all when fewer than five).
func StandardQueries(d *Discovery, box types.BoundingBox) []NamedQuery {
	labels := d.Labels
	if len(labels) >= 5 {
		labels = labels[2:5]
	}
	labels = append([]types.Label(nil), labels...)

	return []NamedQuery{
		{Label: "Q1", Query: index.Query{ID: d.Labels[0]}},
		{Label: "Q2", Query: index.Query{Point: d.FirstPoint.Clone()}},
		{Label: "Q3", Query: index.Query{Space: d.Spaces[0]}},
		{Label: "Q4", Query: index.Query{Box: &types.BoundingBox{Low: box.Low.Clone(), High: box.High.Clone()}}},
		{Label: "Q5", Query: index.Query{Labels: labels}},
	}
}

// EnqueueAll registers every query with the harness.
func EnqueueAll(h *Harness, s Searcher, core string, repetitions int, queries []NamedQuery) error {
	for _, q := range queries {
		if err := h.Enqueue(q.Label, repetitions, q.Func(s, core)); err != nil {
			return err
		}
	}
	return nil
}
