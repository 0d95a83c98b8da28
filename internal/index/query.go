package index

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/observability"
	"github.com/arkilian/spatialbench/internal/query/filter"
	"github.com/arkilian/spatialbench/pkg/types"
)

// MatchAll is the default main query.
const MatchAll = "*:*"

// Query describes one select request. Zero-valued fields are absent.
// Present filters are conjoined, each as its own fq parameter.
type Query struct {
	// Q is the main query (default MatchAll)
	Q string

	// ID selects the documents of one label
	ID types.Label

	// Point selects documents at exactly this position
	Point types.Point

	// Box selects documents inside this bounding box
	Box *types.BoundingBox

	// Space selects documents in this reference space
	Space types.ReferenceSpace

	// Labels selects documents inside the union of the labels' bounding boxes.
	// A nil slice is absent; an empty slice adds no filter.
	Labels []types.Label

	// FieldList restricts the returned fields
	FieldList []string
}

// Page selects a window of the result set.
type Page struct {
	Start int
	Rows  int
}

// Response is a decoded select response.
type Response struct {
	NumFound int
	Start    int
	Docs     []types.Document
	QTime    int
}

type selectResponse struct {
	ResponseHeader struct {
		Status int `json:"status"`
		QTime  int `json:"QTime"`
	} `json:"responseHeader"`
	Response *struct {
		NumFound int              `json:"numFound"`
		Start    int              `json:"start"`
		Docs     []types.Document `json:"docs"`
	} `json:"response"`
}

// filters builds the fq list for q. Label unions are resolved here, so a
// query with labels costs one stats round trip per label before the select.
func (c *Client) filters(ctx context.Context, core string, q Query) ([]filter.Filter, error) {
	var fqs []filter.Filter

	if q.ID != "" {
		fqs = append(fqs, c.encoder.LabelToFilter(q.ID))
	}
	if q.Space != "" {
		fqs = append(fqs, c.encoder.SpaceToFilter(q.Space))
	}
	if q.Point != nil {
		f, err := c.encoder.PointToFilter(q.Point)
		if err != nil {
			return nil, err
		}
		fqs = append(fqs, f)
	}
	if q.Box != nil {
		f, err := c.encoder.BBoxToFilter(*q.Box)
		if err != nil {
			return nil, err
		}
		fqs = append(fqs, f)
	}
	if q.Labels != nil {
		f, err := c.resolver.Resolve(ctx, core, q.Labels)
		if err != nil {
			return nil, err
		}
		if !f.IsEmpty() {
			fqs = append(fqs, f)
		}
	}
	return fqs, nil
}

// Query runs a single select request for one page of results.
func (c *Client) Query(ctx context.Context, core string, q Query, page Page) (*Response, error) {
	if err := requireCore(core); err != nil {
		return nil, err
	}
	if page.Start < 0 || page.Rows < 0 {
		return nil, spatialerrors.NewValidationError(spatialerrors.CodeInvalidFilter, "page start and rows must be non-negative")
	}

	fqs, err := c.filters(ctx, core, q)
	if err != nil {
		return nil, err
	}

	main := q.Q
	if main == "" {
		main = MatchAll
	}

	params := url.Values{}
	params.Set("q", main)
	params.Set("wt", "json")
	params.Set("rows", strconv.Itoa(page.Rows))
	params.Set("start", strconv.Itoa(page.Start))
	for _, f := range fqs {
		params.Add("fq", f.String())
		c.stats.RecordFilter(f, observability.KindFilter)
	}
	if len(q.FieldList) > 0 {
		params.Set("fl", strings.Join(q.FieldList, ","))
	}
	if main != MatchAll {
		c.stats.RecordFilter(filter.Filter(main), observability.KindQuery)
	}

	var raw selectResponse
	if err := c.get(ctx, KindSelect, core+"/select", params, &raw); err != nil {
		return nil, err
	}
	if raw.Response == nil {
		return nil, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "select response has no response section", nil)
	}

	c.logger.Debug("select",
		zap.String("core", core),
		zap.Int("num_found", raw.Response.NumFound),
		zap.Int("rows", len(raw.Response.Docs)),
		zap.Int("qtime_ms", raw.ResponseHeader.QTime),
	)

	return &Response{
		NumFound: raw.Response.NumFound,
		Start:    raw.Response.Start,
		Docs:     raw.Response.Docs,
		QTime:    raw.ResponseHeader.QTime,
	}, nil
}

// Cardinality returns the number of documents matching q without fetching any.
func (c *Client) Cardinality(ctx context.Context, core string, q Query) (int, error) {
	resp, err := c.Query(ctx, core, q, Page{Start: 0, Rows: 0})
	if err != nil {
		return 0, err
	}
	return resp.NumFound, nil
}

// Fetch returns every document matching q using two requests: a cardinality
// query, then a select sized to that count. Documents added or removed between
// the two requests are not reconciled.
func (c *Client) Fetch(ctx context.Context, core string, q Query) (*Response, error) {
	n, err := c.Cardinality(ctx, core, q)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, core, q, Page{Start: 0, Rows: n})
}

// Page returns one window of the documents matching q.
func (c *Client) Page(ctx context.Context, core string, q Query, start, rows int) (*Response, error) {
	return c.Query(ctx, core, q, Page{Start: start, Rows: rows})
}

// Pages walks the result set of q in windows of size rows, calling fn for each
// page in order. It stops at the first error returned by fn.
func (c *Client) Pages(ctx context.Context, core string, q Query, rows int, fn func(page int, resp *Response) error) error {
	if rows <= 0 {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidFilter, "page size must be positive")
	}
	total, err := c.Cardinality(ctx, core, q)
	if err != nil {
		return err
	}
	pages := PageCount(total, rows)
	for p := 0; p < pages; p++ {
		resp, err := c.Query(ctx, core, q, Page{Start: p * rows, Rows: rows})
		if err != nil {
			return err
		}
		if err := fn(p, resp); err != nil {
			return err
		}
	}
	return nil
}

// PageCount returns ceil(total/size), or 0 when size is not positive.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
