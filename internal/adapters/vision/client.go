// Package vision provides the client for the paid content-understanding API
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
)

const (
	defaultTimeout = 120 * time.Second
	defaultUA      = "tripwire-scheduler"
)

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string

	// Timeout bounds a single analysis call end to end
	Timeout time.Duration
}

// Request describes one analysis call
type Request struct {
	VideoID         string  `json:"video_id"`
	SamplingDensity float64 `json:"sampling_density"`
}

// Result is the provider's verdict for one call
type Result struct {
	Violation bool `json:"violation"`
	// Cost is the amount the provider actually billed for the call
	// it can undershoot the caller's estimate when fewer frames were usable
	Cost   float64  `json:"cost"`
	Labels []string `json:"labels,omitempty"`
}

// Client speaks the minimal analysis REST shape
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("vision"),
	}
}

// Analyze submits a video for analysis and blocks until the verdict
// transient failures surface as retryable errors for the caller's backoff
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	var zero Result

	payload, err := json.Marshal(req)
	if err != nil {
		return zero, perr.Wrapf(err, perr.ErrorCodeJSON, "vision encode request")
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return zero, perr.Wrapf(err, perr.ErrorCodeUnknown, "vision new request failed")
	}
	hreq.Header.Set("User-Agent", c.opts.UserAgent)
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return zero, perr.Wrapf(err, perr.ErrorCodeUnavailable, "vision do failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, rerr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
		if rerr != nil {
			return zero, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "vision read body failed")
		}
		var out Result
		if err := json.Unmarshal(body, &out); err != nil {
			return zero, perr.Wrapf(err, perr.ErrorCodeJSON, "vision decode verdict")
		}
		c.log.Debug().
			Str("video_id", req.VideoID).
			Dur("elapsed", time.Since(start)).
			Bool("violation", out.Violation).
			Msg("analysis done")
		return out, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return zero, perr.Newf(perr.ErrorCodeTooManyRequests, "vision throttled")

	case resp.StatusCode >= 500:
		return zero, perr.Newf(perr.ErrorCodeUnavailable, "vision returned %d", resp.StatusCode)

	case resp.StatusCode == http.StatusUnprocessableEntity:
		// the provider rejected the video itself, retrying cannot help
		return zero, perr.Validationf("vision rejected video %s", req.VideoID)

	default:
		return zero, perr.Newf(perr.ErrorCodeUnknown, "vision returned %d", resp.StatusCode)
	}
}
