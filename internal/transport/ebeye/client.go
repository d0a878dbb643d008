// Package ebeye queries the EBI search index through the local search proxy.
package ebeye

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metasearch/internal/domain"
	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
	"github.com/kailas-cloud/metasearch/internal/metrics"
)

const (
	// DefaultProxyURL is the proxy endpoint of a local development portal.
	DefaultProxyURL = "http://localhost:8000/api/internal/ebeye"
	// DefaultIndexURL is the search index host.
	DefaultIndexURL = "http://ash-4.ebi.ac.uk:8080"
	// DefaultFormat is the response format requested from the index.
	DefaultFormat = "json"

	indexPath        = "/ebisearch/ws/rest/rnacentral"
	queryPlaceholder = "{QUERY}"
	proxyParam       = "url"

	statusSuccess      = "success"
	statusNetworkError = "network_error"
	statusHTTPError    = "http_error"
	statusDecodeError  = "decode_error"
)

// DefaultFields is the field projection requested for every entry.
var DefaultFields = []string{"description", "active", "length", "name"}

// Config holds the search client settings. Zero values fall back to the defaults.
type Config struct {
	ProxyURL string
	IndexURL string
	Format   string
	Fields   []string
	// Timeout bounds a single request. Zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client sends search requests to the index via the proxy.
type Client struct {
	http     *http.Client
	proxyURL string
	template string
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewClient creates a search client.
func NewClient(cfg *Config) *Client {
	proxyURL := cfg.ProxyURL
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	indexURL := cfg.IndexURL
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	format := cfg.Format
	if format == "" {
		format = DefaultFormat
	}
	fields := cfg.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:     httpClient,
		proxyURL: proxyURL,
		template: strings.TrimRight(indexURL, "/") + indexPath +
			"?query=" + queryPlaceholder +
			"&format=" + format +
			"&fields=" + strings.Join(fields, ","),
		logger: logger,
		tracer: otel.Tracer("metasearch-ebeye"),
	}
}

// UpstreamURL returns the index URL for text. The text is substituted verbatim.
func (c *Client) UpstreamURL(text string) string {
	return strings.Replace(c.template, queryPlaceholder, text, 1)
}

// RequestURL returns the proxy URL carrying the upstream URL for text.
func (c *Client) RequestURL(text string) string {
	sep := "?"
	if strings.Contains(c.proxyURL, "?") {
		sep = "&"
	}
	return c.proxyURL + sep + proxyParam + "=" + encodeComponent(c.UpstreamURL(text))
}

// Search fetches the raw index response for text.
func (c *Client) Search(ctx context.Context, text string) (result.Response, error) {
	ctx, span := c.tracer.Start(ctx, "ebeye.search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("search.query", text)),
	)
	defer span.End()

	start := time.Now()
	resp, status, err := c.fetch(ctx, text)
	duration := time.Since(start)

	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
	metrics.SearchRequestDuration.Observe(duration.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		c.logger.Warn("search request failed",
			zap.String("query", text),
			zap.String("status", status),
			zap.Duration("latency", duration),
			zap.Error(err),
		)
		return result.Response{}, err
	}

	if resp.Result != nil && resp.Result.HitCount != nil {
		metrics.SearchHits.Observe(float64(*resp.Result.HitCount))
		span.SetAttributes(attribute.Int64("search.hits", *resp.Result.HitCount))
	}
	c.logger.Debug("search request completed",
		zap.String("query", text),
		zap.Duration("latency", duration),
	)
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, text string) (result.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(text), http.NoBody)
	if err != nil {
		return result.Response{}, statusNetworkError, fmt.Errorf("build request: %w: %w", domain.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return result.Response{}, statusNetworkError, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return result.Response{}, statusHTTPError, domain.NewHTTPError(httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return result.Response{}, statusNetworkError, fmt.Errorf("read body: %w: %w", domain.ErrNetwork, err)
	}

	var resp result.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return result.Response{}, statusDecodeError, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	return resp, statusSuccess, nil
}

// Ping checks that the proxy answers HTTP at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.proxyURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// encodeComponent percent-encodes s the way encodeURIComponent does for the
// characters that matter here: spaces become %20, not +.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
