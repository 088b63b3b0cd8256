package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults applied by New when the corresponding Config field is unset.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultTimeout     = 30 * time.Second
)

var (
	errRateLimited = eris.New("rate limited")
	errServerError = eris.New("server error")
)

// Config controls retry, pacing and timeout behaviour for one upstream source.
type Config struct {
	// MaxAttempts is the total number of attempts, not the number of retries
	// after the first try.
	MaxAttempts int

	// BaseDelay is the linear backoff unit: the sleep after the n-th failed
	// attempt is BaseDelay * n.
	BaseDelay time.Duration

	// Timeout bounds each individual Fetch call, backoff sleeps included.
	Timeout time.Duration

	// RateLimit caps outbound requests per second. Zero means unlimited.
	RateLimit float64
}

// Client wraps an HTTP client with bounded retries, a circuit breaker and an
// optional rate limiter for one upstream source. Fetch never returns an
// error: every failure mode collapses to ok=false after being logged, so
// callers degrade instead of propagating transport faults.
type Client struct {
	name    string
	client  *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// New creates a Client for one named upstream source. Zero config fields take
// the package defaults.
func New(name string, client *http.Client, cfg Config) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		name:   name,
		client: client,
		cfg:    cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch issues a GET against endpoint with the given query and headers and
// returns the raw response body. The payload is never interpreted here;
// decoding belongs to the caller.
func (c *Client) Fetch(ctx context.Context, endpoint string, query url.Values, header http.Header) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		zap.L().Warn("fetch aborted while rate limited",
			zap.String("source", c.name),
			zap.Error(err))
		return nil, false
	}

	reqURL := endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			zap.L().Warn("fetch cancelled",
				zap.String("source", c.name),
				zap.Int("attempt", attempt),
				zap.Error(ctx.Err()))
			return nil, false
		}

		body, err := c.attempt(ctx, reqURL, header)
		if err == nil {
			return body, true
		}

		// An open breaker will fail every remaining attempt; stop early.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			zap.L().Warn("fetch short-circuited by open breaker",
				zap.String("source", c.name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, false
		}

		zap.L().Warn("fetch attempt failed",
			zap.String("source", c.name),
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", c.cfg.MaxAttempts),
			zap.Error(err))

		if attempt == c.cfg.MaxAttempts {
			break
		}

		// Linear backoff: one base unit after the first failure, two after
		// the second, and so on. Sleeps block only this call.
		timer := time.NewTimer(c.cfg.BaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			zap.L().Warn("fetch cancelled during backoff",
				zap.String("source", c.name),
				zap.Error(ctx.Err()))
			return nil, false
		case <-timer.C:
		}
	}

	return nil, false
}

// attempt performs one request/read cycle guarded by the circuit breaker.
func (c *Client) attempt(ctx context.Context, reqURL string, header http.Header) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		// Handle rate limiting and server errors explicitly.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, errServerError
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, eris.Errorf("unexpected status code %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, eris.New("unexpected result type from circuit breaker")
	}
	return body, nil
}
