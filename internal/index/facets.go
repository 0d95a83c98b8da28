package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/observability"
)

// FacetValue is one distinct field value and its document count.
type FacetValue struct {
	Value string
	Count int
}

type facetResponse struct {
	FacetCounts *struct {
		FacetFields map[string][]json.RawMessage `json:"facet_fields"`
	} `json:"facet_counts"`
}

// Facet returns the distinct values of field with their counts, in the order
// reported by the index.
func (c *Client) Facet(ctx context.Context, core, field string) ([]FacetValue, error) {
	if err := requireCore(core); err != nil {
		return nil, err
	}
	if field == "" {
		return nil, spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "facet field is required")
	}

	params := url.Values{}
	params.Set("q", MatchAll)
	params.Set("wt", "json")
	params.Set("rows", "0")
	params.Set("facet", "true")
	params.Set("facet.field", field)
	params.Set("facet.limit", "-1")
	params.Set("facet.mincount", "1")
	c.stats.RecordField(field, observability.KindFacet)

	var raw facetResponse
	if err := c.get(ctx, KindFacet, core+"/select", params, &raw); err != nil {
		return nil, err
	}
	if raw.FacetCounts == nil {
		return nil, spatialerrors.NewIndexError(spatialerrors.CodeMissingFacets, "response has no facet_counts section", nil)
	}
	pairs, ok := raw.FacetCounts.FacetFields[field]
	if !ok {
		return nil, spatialerrors.NewIndexError(spatialerrors.CodeMissingFacets,
			fmt.Sprintf("response has no facets for %s", field), nil)
	}
	if len(pairs)%2 != 0 {
		return nil, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed,
			fmt.Sprintf("facet list for %s has odd length %d", field, len(pairs)), nil)
	}

	values := make([]FacetValue, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		var fv FacetValue
		if err := json.Unmarshal(pairs[i], &fv.Value); err != nil {
			return nil, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "bad facet value", err)
		}
		if err := json.Unmarshal(pairs[i+1], &fv.Count); err != nil {
			return nil, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "bad facet count", err)
		}
		values = append(values, fv)
	}
	return values, nil
}

// ListField returns the distinct values of field.
func (c *Client) ListField(ctx context.Context, core, field string) ([]string, error) {
	facets, err := c.Facet(ctx, core, field)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(facets))
	for i, f := range facets {
		out[i] = f.Value
	}
	return out, nil
}
