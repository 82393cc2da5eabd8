package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AdrienSalicis/WindDatas/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}

// StatusError is returned when a provider keeps answering 429 or 5xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

var ErrCircuitOpen = errors.New("circuit breaker open")

type Options struct {
	// Name labels metrics and the circuit breaker, usually the provider id.
	Name string
	// RequestsPerSecond limits the request rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxElapsed bounds total retry time for one request.
	MaxElapsed time.Duration
	HTTPClient *http.Client
}

// Client is a per-provider HTTP client that rate limits, retries 429 and 5xx
// responses with exponential backoff, and stops calling a provider that keeps
// failing.
type Client struct {
	name       string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxElapsed time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

func New(opts Options) *Client {
	c := &Client{
		name:       opts.Name,
		http:       opts.HTTPClient,
		maxElapsed: opts.MaxElapsed,
	}
	if c.http == nil {
		c.http = NewClient()
	}
	if c.maxElapsed == 0 {
		c.maxElapsed = 2 * time.Minute
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// Get fetches url. Any status below 500 other than 429 is returned to the
// caller as a Response; the caller decides what 204 or 404 mean. Every
// attempt, retries included, waits on the rate limiter.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	var resp *Response
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
			}
		}
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, url, header)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrCircuitOpen, c.name))
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		resp = result.(*Response)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	res, err := c.http.Do(req)
	metrics.ProviderAPILatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderAPICallsTotal.WithLabelValues(c.name, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", c.name, err)
	}
	defer res.Body.Close()
	metrics.ProviderAPICallsTotal.WithLabelValues(c.name, strconv.Itoa(res.StatusCode)).Inc()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, &StatusError{Code: res.StatusCode, Body: truncate(string(body), 200)}
	}
	return &Response{Status: res.StatusCode, Body: body}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
