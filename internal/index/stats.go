package index

import (
	"context"
	"fmt"
	"net/url"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/observability"
	"github.com/arkilian/spatialbench/internal/query/filter"
	"github.com/arkilian/spatialbench/pkg/types"
)

type fieldStats struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Count int64    `json:"count"`
}

type statsResponse struct {
	Response *struct {
		NumFound int `json:"numFound"`
	} `json:"response"`
	Stats *struct {
		StatsFields map[string]*fieldStats `json:"stats_fields"`
	} `json:"stats"`
}

// SpatialMBB returns the minimum bounding box of the documents matching the
// main query q, computed server-side from per-dimension min/max statistics.
// dims <= 0 uses the client's configured dimensionality.
func (c *Client) SpatialMBB(ctx context.Context, core, q string, dims int) (types.BoundingBox, error) {
	if err := requireCore(core); err != nil {
		return types.BoundingBox{}, err
	}
	if dims <= 0 {
		dims = c.dimensions
	}
	if dims > types.MaxDimensions {
		return types.BoundingBox{}, spatialerrors.NewValidationError(spatialerrors.CodeInvalidDimensions,
			fmt.Sprintf("stats dimensionality must be at most %d, got %d", types.MaxDimensions, dims))
	}
	if q == "" {
		q = MatchAll
	}

	fields := types.CoordinateFields(dims)

	params := url.Values{}
	params.Set("q", q)
	params.Set("wt", "json")
	params.Set("rows", "0")
	params.Set("stats", "true")
	for _, f := range fields {
		params.Add("stats.field", f)
		c.stats.RecordField(f, observability.KindStats)
	}
	c.stats.RecordFilter(filter.Filter(q), observability.KindQuery)

	var raw statsResponse
	if err := c.get(ctx, KindStats, core+"/select", params, &raw); err != nil {
		return types.BoundingBox{}, err
	}
	if raw.Stats == nil || raw.Stats.StatsFields == nil {
		return types.BoundingBox{}, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "stats response has no stats_fields section", nil)
	}

	box := types.BoundingBox{
		Low:  make(types.Point, dims),
		High: make(types.Point, dims),
	}
	for d, f := range fields {
		s := raw.Stats.StatsFields[f]
		if s == nil || s.Min == nil || s.Max == nil {
			return types.BoundingBox{}, spatialerrors.NewIndexError(spatialerrors.CodeEmptyStats,
				fmt.Sprintf("no statistics for %s (query %q matched no documents)", f, q), nil).
				WithDetails(map[string]interface{}{"query": q, "field": f})
		}
		box.Low[d] = *s.Min
		box.High[d] = *s.Max
	}
	return box, nil
}
