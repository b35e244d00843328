// Package catalog provides a resilient client for the external video catalog API
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"

	"golang.org/x/time/rate"
)

// Unit costs charged by the catalog per call type
// these are the amounts reserved against the discovery ledger
const (
	CostChannelSweep  = 3
	CostTrending      = 5
	CostKeywordSearch = 100
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "tripwire-discovery"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond
	defaultRPS       = 5
)

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration

	// RPS caps outbound request rate regardless of quota accounting
	RPS float64
}

// Client is a minimal catalog REST client with client-side rate limiting
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RPS <= 0 {
		o.RPS = defaultRPS
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout},
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.RPS), 1),
		log:     *logger.Named("catalog"),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// ChannelVideos lists a channel's recent uploads (the tracking sweep)
func (c *Client) ChannelVideos(ctx context.Context, channelID string, since time.Time) ([]Video, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	return c.list(ctx, "/v1/channels/"+url.PathEscape(channelID)+"/videos", q)
}

// Trending samples the catalog's trending feed
func (c *Client) Trending(ctx context.Context) ([]Video, error) {
	return c.list(ctx, "/v1/trending", nil)
}

// Search runs a keyword search, the most expensive call type
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	q := url.Values{}
	q.Set("q", query)
	return c.list(ctx, "/v1/search", q)
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]Video, error) {
	body, err := c.do(ctx, path, q)
	if err != nil {
		return nil, err
	}
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "catalog decode %s", path)
	}
	return p.Videos, nil
}

// do issues a GET with auth, client-side rate limiting, and bounded retries
func (c *Client) do(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.opts.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	attempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "catalog new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.opts.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "catalog do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("catalog transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		body, rerr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if rerr != nil {
				return nil, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "catalog read body failed")
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if !c.shouldRetry(attempts) {
				return nil, perr.Newf(perr.ErrorCodeUnavailable, "catalog %s returned %d", path, resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().
				Int("status", resp.StatusCode).
				Dur("retry_in", back).
				Int("attempt", attempts).
				Msg("catalog throttled retrying")
			c.sleep(back)
			attempts++

		case resp.StatusCode == http.StatusNotFound:
			return nil, perr.NotFoundf("catalog %s not found", path)

		default:
			return nil, perr.Newf(perr.ErrorCodeUnknown, "catalog %s returned %d", path, resp.StatusCode)
		}
	}
}

func (c *Client) shouldRetry(attempts int) bool { return attempts < c.opts.MaxRetries }

func (c *Client) backoff(attempts int) time.Duration {
	d := c.opts.RetryBase << attempts
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
