// Package index is the client for the spatial index service: a Solr-style
// REST select API over documents with multi-dimensional point fields.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/arkilian/spatialbench/internal/config"
	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/logging"
	"github.com/arkilian/spatialbench/internal/metrics"
	"github.com/arkilian/spatialbench/internal/observability"
	"github.com/arkilian/spatialbench/internal/query/filter"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Request kinds used for metrics and usage statistics.
const (
	KindSelect = "select"
	KindStats  = "stats"
	KindFacet  = "facet"
	KindCores  = "cores"
)

// Options configures a Client.
type Options struct {
	// URL is the service base URL, e.g. http://localhost:8983/solr
	URL string

	// Timeout bounds every request (0 = no timeout)
	Timeout time.Duration

	// RetryMax is the transport retry budget (0 = no retries)
	RetryMax int

	// LabelConcurrency bounds per-label stats queries (default 1)
	LabelConcurrency int

	// Dimensions is the dimensionality used for stats queries (default 3)
	Dimensions int

	// Encoder builds filter strings (default filter.Default)
	Encoder *filter.Encoder

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Stats   *observability.QueryStats
}

// OptionsFromConfig maps the index configuration section onto client options.
func OptionsFromConfig(cfg config.IndexConfig) (Options, error) {
	boundary, err := filter.ParseBoundary(string(cfg.Boundary))
	if err != nil {
		return Options{}, err
	}
	encoder := filter.NewEncoder(filter.Fields{
		ID:          cfg.Fields.ID,
		Space:       cfg.Fields.Space,
		Coordinates: cfg.Fields.Coordinates,
	}, boundary)

	return Options{
		URL:              cfg.URL,
		Timeout:          cfg.Timeout,
		RetryMax:         cfg.RetryMax,
		LabelConcurrency: cfg.LabelConcurrency,
		Dimensions:       cfg.Dimensions,
		Encoder:          encoder,
	}, nil
}

// Client issues queries against the index service. It holds no per-query
// state and is safe for concurrent use by all benchmark workers.
type Client struct {
	baseURL    string
	http       *retryablehttp.Client
	encoder    *filter.Encoder
	dimensions int
	resolver   *Resolver
	logger     *zap.Logger
	metrics    *metrics.Metrics
	stats      *observability.QueryStats
}

// NewClient creates a client. The URL is required.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "index url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig, fmt.Sprintf("invalid index url %q: %v", base, err))
	}

	logger := logging.OrNop(opts.Logger).Named("index")
	if opts.Encoder == nil {
		opts.Encoder = filter.Default
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 3
	}

	c := &Client{
		baseURL:    base,
		http:       newTransport(opts.Timeout, opts.RetryMax, logger),
		encoder:    opts.Encoder,
		dimensions: opts.Dimensions,
		logger:     logger,
		metrics:    opts.Metrics,
		stats:      opts.Stats,
	}
	c.resolver = NewResolver(c, opts.LabelConcurrency)
	return c, nil
}

// Encoder returns the filter encoder used by the client.
func (c *Client) Encoder() *filter.Encoder { return c.encoder }

// Dimensions returns the dimensionality used for stats queries.
func (c *Client) Dimensions() int { return c.dimensions }

// Resolver returns the label-union resolver bound to this client.
func (c *Client) Resolver() *Resolver { return c.resolver }

// get performs one GET request against <base>/<path> and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, kind, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + "/" + path + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return spatialerrors.NewInternalError("failed to build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	c.stats.RecordRequest(kind)
	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(kind, metrics.StatusClass(0), elapsed)
		return transportError(reqURL, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(kind, metrics.StatusClass(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(reqURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "failed to decode index response", err).
			WithDetails(map[string]interface{}{"url": reqURL})
	}

	c.logger.Debug("index request",
		zap.String("kind", kind),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func transportError(reqURL string, err error) error {
	code := spatialerrors.CodeRequestFailed
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = spatialerrors.CodeUnavailable
	}
	return spatialerrors.NewTransportError(code, "index request failed", err).
		WithDetails(map[string]interface{}{"url": reqURL})
}

func statusError(reqURL string, status int, body string) error {
	code := spatialerrors.CodeBadStatus
	if status == http.StatusServiceUnavailable {
		code = spatialerrors.CodeUnavailable
	}
	msg := fmt.Sprintf("index returned status %d", status)
	if body != "" {
		msg += ": " + body
	}
	return spatialerrors.NewTransportError(code, msg, nil).
		WithDetails(map[string]interface{}{"status": status, "url": reqURL})
}

func requireCore(core string) error {
	if strings.TrimSpace(core) == "" {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "core is required")
	}
	return nil
}
