package index

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/arkilian/spatialbench/internal/query/filter"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Resolver turns a set of labels into a spatial filter: the OR-union of each
// label's minimum bounding box. The union over-approximates the labels'
// volumes; points in a box but outside its label's true volume still match.
type Resolver struct {
	client      *Client
	concurrency int
}

// NewResolver creates a resolver issuing at most concurrency stats queries at once.
func NewResolver(client *Client, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{client: client, concurrency: concurrency}
}

// Boxes returns the bounding box of each label, in input order.
func (r *Resolver) Boxes(ctx context.Context, core string, labels []types.Label) ([]types.BoundingBox, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	boxes := make([]types.BoundingBox, len(labels))
	errs := make([]error, len(labels))
	sem := semaphore.NewWeighted(int64(r.concurrency))

	var wg sync.WaitGroup
	for i, label := range labels {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = fmt.Errorf("semaphore acquire failed: %w", err)
			break
		}

		wg.Add(1)
		go func(i int, label types.Label) {
			defer sem.Release(1)
			defer wg.Done()

			q := r.client.encoder.LabelToFilter(label)
			boxes[i], errs[i] = r.client.SpatialMBB(ctx, core, q.String(), 0)
		}(i, label)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", labels[i], err)
		}
	}
	return boxes, nil
}

// Resolve returns the union filter for labels. No labels yields the empty
// filter without contacting the index.
//
// A label's extreme points lie on its box surface, so label boxes are always
// inclusive and widened to the encoded precision, whatever boundary mode the
// client uses for box queries.
func (r *Resolver) Resolve(ctx context.Context, core string, labels []types.Label) (filter.Filter, error) {
	boxes, err := r.Boxes(ctx, core, labels)
	if err != nil {
		return "", err
	}
	for i := range boxes {
		boxes[i] = widen(boxes[i])
	}
	return r.client.encoder.WithBoundary(filter.Inclusive).UnionFilter(boxes)
}

// precision matches the six decimals range filters are encoded with.
const precision = 1e6

// widen rounds the low corner down and the high corner up to the encoded
// precision so rounding never moves a corner point outside the box.
func widen(b types.BoundingBox) types.BoundingBox {
	out := types.BoundingBox{Low: make(types.Point, len(b.Low)), High: make(types.Point, len(b.High))}
	for d := range b.Low {
		out.Low[d] = roundTo(b.Low[d], math.Floor)
	}
	for d := range b.High {
		out.High[d] = roundTo(b.High[d], math.Ceil)
	}
	return out
}

func roundTo(v float64, dir func(float64) float64) float64 {
	scaled := v * precision
	if r := math.Round(scaled); math.Abs(scaled-r) < 1e-6 {
		return r / precision
	}
	return dir(scaled) / precision
}
