// Package loki implements the subset of the Loki HTTP API needed to download
// raw log lines for a label selector over a time range.
package loki

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fastjson"
)

// DefaultPageLimit is the number of entries requested per query_range page.
const DefaultPageLimit = 5000

// Entry is one log line returned by the backend.
type Entry struct {
	Timestamp time.Time
	Line      string
}

// Options configures a Client.
type Options struct {
	Token     string            // bearer token, optional
	Headers   map[string]string // extra headers, override the token header
	PageLimit int               // defaults to DefaultPageLimit
	Timeout   time.Duration     // per-request timeout, defaults to 30s
}

// Client queries a Loki-compatible endpoint.
type Client struct {
	baseURL string
	httpc   *http.Client
	headers http.Header
	limit   int
	logger  *slog.Logger
	parsers fastjson.ParserPool
}

// New creates a client for the given base URL (e.g. "https://loki.example.com").
func New(baseURL string, opts Options, logger *slog.Logger) *Client {
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	headers := make(http.Header)
	if opts.Token != "" {
		headers.Set("Authorization", "Bearer "+opts.Token)
	}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: opts.Timeout},
		headers: headers,
		limit:   opts.PageLimit,
		logger:  logger,
	}
}

// QueryRange streams all entries matching selector between start and end in
// forward order, calling fn for each. It paginates by advancing the range
// start to the last seen timestamp plus one nanosecond, so entries sharing a
// nanosecond with the page boundary may be skipped.
func (c *Client) QueryRange(ctx context.Context, selector string, start, end time.Time, fn func(Entry) error) error {
	cursor := start.UnixNano()
	endNs := end.UnixNano()

	for {
		entries, err := c.page(ctx, selector, cursor, endNs)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if err := fn(e); err != nil {
				return err
			}
		}
		if len(entries) < c.limit {
			return nil
		}
		cursor = entries[len(entries)-1].Timestamp.UnixNano() + 1
		if cursor > endNs {
			return nil
		}
	}
}

// page fetches one query_range page, retrying transient failures.
func (c *Client) page(ctx context.Context, selector string, startNs, endNs int64) ([]Entry, error) {
	var entries []Entry

	op := func() error {
		var err error
		entries, err = c.fetchPage(ctx, selector, startNs, endNs)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Minute

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) fetchPage(ctx context.Context, selector string, startNs, endNs int64) ([]Entry, error) {
	params := url.Values{}
	params.Set("query", selector)
	params.Set("start", strconv.FormatInt(startNs, 10))
	params.Set("end", strconv.FormatInt(endNs, 10))
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("direction", "FORWARD")

	reqURL := c.baseURL + "/loki/api/v1/query_range?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("query_range request failed, retrying", "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("query_range returned retryable status", "status", resp.StatusCode)
		return nil, fmt.Errorf("query_range: status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("query_range: status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	return c.parseResponse(body)
}

// parseResponse flattens all matching streams into a single timestamp-sorted
// entry list. A selector on a single node label usually matches one stream,
// but restarts can split it.
func (c *Client) parseResponse(body []byte) ([]Entry, error) {
	p := c.parsers.Get()
	defer c.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse query_range response: %w", err))
	}

	if status := string(v.GetStringBytes("status")); status != "success" {
		return nil, backoff.Permanent(fmt.Errorf("query_range: status %q", status))
	}

	var entries []Entry
	for _, stream := range v.GetArray("data", "result") {
		for _, pair := range stream.GetArray("values") {
			vals := pair.GetArray()
			if len(vals) != 2 {
				return nil, backoff.Permanent(fmt.Errorf("query_range: malformed value pair"))
			}
			ns, err := strconv.ParseInt(string(vals[0].GetStringBytes()), 10, 64)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("query_range: bad timestamp: %w", err))
			}
			entries = append(entries, Entry{
				Timestamp: time.Unix(0, ns).UTC(),
				Line:      string(vals[1].GetStringBytes()),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// Selector builds a label selector like {host="alice"}.
func Selector(label, value string) string {
	return fmt.Sprintf(`{%s=%q}`, label, value)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
