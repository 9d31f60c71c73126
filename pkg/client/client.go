// Package client calls the geo REST service and decodes its responses into
// the pkg/geo model.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/geoclient/internal/cache"
	"github.com/mohammed-shakir/geoclient/internal/core/observability"
	"github.com/mohammed-shakir/geoclient/internal/logger"
	"github.com/mohammed-shakir/geoclient/internal/mapper"
	h3mapper "github.com/mohammed-shakir/geoclient/internal/mapper/h3"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
)

// StatusError is returned for a non-2xx response. Body holds at most the
// first 8 KiB of the response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: upstream status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// RecordHook is called after a record write or delete succeeds. f is nil for
// deletes.
type RecordHook func(ctx context.Context, op, layer, id string, f *geo.Feature)

type Client struct {
	logger *slog.Logger
	http   *http.Client
	base   *url.URL
	signer Signer

	cache     cache.Interface
	ttl       time.Duration
	ttlOvr    map[string]time.Duration
	opTimeout time.Duration

	cellRes int
	mapper  mapper.Interface

	onRecord RecordHook
}

type Option func(*Client)

func WithSigner(s Signer) Option {
	return func(c *Client) { c.signer = s }
}

// WithCache stores successful GET bodies in cc for ttl.
func WithCache(cc cache.Interface, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.ttl = ttl
	}
}

// WithCacheTTLOverrides sets per-endpoint TTLs, keyed by endpoint name
// (feature, context, places, layers, layer, record, nearby).
func WithCacheTTLOverrides(m map[string]time.Duration) Option {
	return func(c *Client) { c.ttlOvr = m }
}

// WithCacheOpTimeout bounds each cache call; a slow cache is treated as a miss.
func WithCacheOpTimeout(d time.Duration) Option {
	return func(c *Client) { c.opTimeout = d }
}

// WithContextCellRes caches coordinate context lookups per H3 cell at res;
// a negative res disables it.
func WithContextCellRes(res int) Option {
	return func(c *Client) { c.cellRes = res }
}

func WithMapper(m mapper.Interface) Option {
	return func(c *Client) { c.mapper = m }
}

func WithRecordHook(h RecordHook) Option {
	return func(c *Client) { c.onRecord = h }
}

func New(logger *slog.Logger, hc *http.Client, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", baseURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{
		logger:    logger,
		http:      hc,
		base:      u,
		opTimeout: 250 * time.Millisecond,
		cellRes:   -1,
	}
	for _, o := range opts {
		o(c)
	}
	if c.cellRes >= 0 && c.mapper == nil {
		c.mapper = h3mapper.New()
	}
	return c, nil
}

// request describes one upstream call. segments are already path-escaped.
type request struct {
	endpoint string
	method   string
	segments []string
	query    url.Values
	body     []byte
}

func (c *Client) url(r request) *url.URL {
	u := *c.base
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.Join(r.segments, "/")
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	}
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}
	return &u
}

// do sends r and returns the response body of a 2xx response. The caller
// closes it.
func (c *Client) do(ctx context.Context, r request) (io.ReadCloser, error) {
	u := c.url(r)
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := logger.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if c.signer != nil {
		if err := c.signer.Sign(req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	dur := time.Since(start)
	observability.ObserveUpstreamLatency(r.endpoint, dur.Seconds())
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	c.logger.DebugContext(ctx, "upstream call",
		"endpoint", r.endpoint,
		"method", r.method,
		"status", resp.StatusCode,
		"duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &StatusError{Method: r.method, URL: u.Redacted(), Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp.Body, nil
}

// exec sends a write and discards the response body.
func (c *Client) exec(ctx context.Context, r request) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return fmt.Errorf("%s: %w", r.endpoint, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	return body.Close()
}

// fetch runs a GET and decodes the body. With a cache configured and a
// non-empty key the raw body is served from and stored in the cache; only
// bodies that decode are stored.
func fetch[T any](ctx context.Context, c *Client, r request, key string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	useCache := c.cache != nil && key != ""

	if useCache {
		if b, ok := c.cacheGet(ctx, key); ok {
			v, err := decode(bytes.NewReader(b))
			if err == nil {
				observability.IncCacheHit()
				c.logger.DebugContext(logger.WithCacheOutcome(ctx, "hit"), "served from cache", "endpoint", r.endpoint, "key", key)
				return v, nil
			}
			c.logger.WarnContext(ctx, "cached body no longer decodes", "key", key, "err", err)
			c.cacheDel(ctx, key)
		}
		observability.IncCacheMiss()
	}

	body, err := c.do(ctx, r)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", r.endpoint, err)
	}
	defer func() { _ = body.Close() }()

	if !useCache {
		v, err := decode(body)
		if err != nil {
			observability.IncDecodeError(r.endpoint, err)
			return zero, fmt.Errorf("%s: %w", r.endpoint, err)
		}
		return v, nil
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return zero, fmt.Errorf("%s: read body: %w", r.endpoint, err)
	}
	v, err := decode(bytes.NewReader(b))
	if err != nil {
		observability.IncDecodeError(r.endpoint, err)
		return zero, fmt.Errorf("%s: %w", r.endpoint, err)
	}
	c.cacheSet(ctx, key, b, c.ttlFor(r.endpoint))
	return v, nil
}

func (c *Client) ttlFor(endpoint string) time.Duration {
	if d, ok := c.ttlOvr[endpoint]; ok {
		return d
	}
	return c.ttl
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	cctx, cancel := c.opCtx(ctx)
	defer cancel()
	b, ok, err := cache.Get(cctx, c.cache, key)
	if err != nil {
		c.logger.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return nil, false
	}
	return b, ok
}

func (c *Client) cacheSet(ctx context.Context, key string, b []byte, ttl time.Duration) {
	cctx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.cache.Set(cctx, key, b, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

func (c *Client) cacheDel(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}
	cctx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.cache.Del(cctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed", "keys", keys, "err", err)
	}
}
