// Package scraper is the throttled upstream client. Every fetch goes through
// one global throttle shared across all keys, and every failure is classified
// into the not_found / parse_error / upstream_error taxonomy. The client never
// retries: retry policy belongs to callers.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"orglens/internal/company/metrics"
	"orglens/internal/company/models"
)

const maxResponseBytes = 5 << 20

// The upstream blocks default Go user agents; rotate through browser ones
// like any polite scraper.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:134.0) Gecko/20100101 Firefox/134.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Client fetches company data from the registry website.
type Client struct {
	httpClient *http.Client
	baseURL    string
	throttle   *Throttle
	logger     *slog.Logger
	metrics    *metrics.Metrics
	userAgents []string
}

type Option func(c *Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithUserAgents(userAgents []string) Option {
	return func(c *Client) {
		c.userAgents = userAgents
	}
}

// New constructs a client. requestDelay is the global minimum interval
// between outbound requests.
func New(baseURL string, requestDelay time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		throttle:   NewThrottle(requestDelay),
		logger:     slog.Default(),
		userAgents: defaultUserAgents,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Throttle exposes the shared throttle, mainly for tests asserting spacing.
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// FetchByINN looks up one company by its taxpayer identification number.
func (c *Client) FetchByINN(ctx context.Context, inn string) (*models.Record, error) {
	items, err := c.search(ctx, inn)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].inn() == inn {
			return c.enrich(ctx, items[i].record(c.baseURL))
		}
	}
	return nil, NewError(CategoryNotFound, "search", "no company with INN "+inn, nil)
}

// FetchByOGRN looks up one company by its state registration number.
func (c *Client) FetchByOGRN(ctx context.Context, ogrn string) (*models.Record, error) {
	items, err := c.search(ctx, ogrn)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ogrn() == ogrn {
			return c.enrich(ctx, items[i].record(c.baseURL))
		}
	}
	return nil, NewError(CategoryNotFound, "search", "no company with OGRN "+ogrn, nil)
}

// FetchByName returns the best match for a free-text query: the registry
// orders suggest results by relevance, so the first item wins.
func (c *Client) FetchByName(ctx context.Context, query string) (*models.Record, error) {
	items, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewError(CategoryNotFound, "search", "no company matches "+strconv.Quote(query), nil)
	}
	return c.enrich(ctx, items[0].record(c.baseURL))
}

// Search returns the raw suggest result list for a query, uncached.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	items, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewError(CategoryNotFound, "search", "no company matches "+strconv.Quote(query), nil)
	}
	results := make([]models.SearchResult, 0, len(items))
	for i := range items {
		results = append(results, items[i].searchResult(c.baseURL))
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, query string) ([]searchItem, error) {
	endpoint := c.baseURL + "/ajax.php?" + url.Values{
		"query":  {query},
		"action": {"search"},
	}.Encode()

	body, err := c.get(ctx, endpoint, "search")
	if err != nil {
		return nil, err
	}
	items, err := parseSearchPayload(body)
	if err != nil {
		c.logger.ErrorContext(ctx, "suggest payload undecodable",
			"error", err,
			"bytes", len(body),
		)
		return nil, NewError(CategoryParse, "search", "suggest payload undecodable", err)
	}
	return items, nil
}

// enrich fetches the company page for identifiers the suggest endpoint does
// not carry (KPP, OKATO, OKTMO, OKFS, OKOGU, full legal name). The page
// fetch rides the same throttle as every other outbound call.
func (c *Client) enrich(ctx context.Context, record models.Record) (*models.Record, error) {
	if record.URL == "" {
		return &record, nil
	}
	body, err := c.get(ctx, record.URL, "company page")
	if err != nil {
		// A 404 page for a company the suggest endpoint just listed is
		// upstream inconsistency, not a missing entity.
		if IsNotFound(err) {
			return nil, NewError(CategoryUpstream, "company page", "page missing for listed company", err)
		}
		return nil, err
	}
	fields, err := parseCompanyPage(bytes.NewReader(body))
	if err != nil {
		c.logger.ErrorContext(ctx, "company page unparsable",
			"error", err,
			"url", record.URL,
		)
		return nil, NewError(CategoryParse, "company page", "page unparsable", err)
	}
	enriched := fields.apply(record)
	return &enriched, nil
}

func (c *Client) get(ctx context.Context, rawURL, op string) ([]byte, error) {
	throttleStart := time.Now()
	if err := c.throttle.Acquire(ctx); err != nil {
		c.metrics.ObserveThrottleWait(time.Since(throttleStart).Seconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(CategoryUpstream, op, "timed out waiting for throttle", err)
		}
		return nil, err
	}
	c.metrics.ObserveThrottleWait(time.Since(throttleStart).Seconds())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewError(CategoryUpstream, op, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgents[rand.IntN(len(c.userAgents))])
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(CategoryUpstream, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewError(CategoryNotFound, op, "upstream returned 404", nil)
	}
	if resp.StatusCode >= 400 {
		return nil, NewError(CategoryUpstream, op, "upstream returned "+strconv.Itoa(resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewError(CategoryUpstream, op, "read response", err)
	}
	return body, nil
}
