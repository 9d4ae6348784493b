package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/layoffwatch/internal/logger"
	"golang.org/x/time/rate"
)

// Config holds the fetch policy shared by every adapter.
type Config struct {
	RequestDelay   time.Duration // minimum spacing between outbound attempts
	MaxRetries     int           // total attempts per call
	RetryBaseDelay time.Duration // wait after attempt n is RetryBaseDelay * 2^n
	Timeout        time.Duration // per attempt
	UserAgent      string
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RequestDelay:   2 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		Timeout:        30 * time.Second,
		UserAgent:      "LayoffTracker/1.0",
	}
}

// Request describes one GET.
type Request struct {
	URL     string
	Query   map[string]string
	Headers map[string]string
}

// Response is a successful (2xx) reply.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleep replaces the backoff sleep. Tests use it to record waits.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// Fetcher performs rate-limited, retried GETs. One instance is shared by all
// adapters, so its limiter is global.
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	cfg     Config
	proxy   ProxyConfig
	sleep   SleepFunc
}

// New creates a Fetcher. Proxy routing is fixed for the Fetcher's lifetime:
// enabled proxies are set on the transport, otherwise environment proxies are cleared.
func New(cfg Config, proxy ProxyConfig, opts ...Option) *Fetcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	if u := proxy.URL(); u != "" {
		client.SetProxy(u)
	} else {
		client.RemoveProxy()
	}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	f := &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		proxy:   proxy,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Proxy returns the proxy routing this Fetcher was built with.
func (f *Fetcher) Proxy() ProxyConfig { return f.proxy }

// UserAgent returns the configured User-Agent.
func (f *Fetcher) UserAgent() string { return f.cfg.UserAgent }

// Wait blocks until the shared limiter grants a slot. Browser sessions call it
// before each navigation so they count against the same budget.
func (f *Fetcher) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

// Get is Fetch for a bare URL.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	return f.Fetch(ctx, Request{URL: rawURL})
}

// Fetch runs req under the rate limit and retry policy.
// Malformed URLs fail immediately with ErrMalformedRequest. 4xx responses other
// than 408/429 are not retried. Everything else is retried up to MaxRetries
// attempts and then returned as a *FetchFailedError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := f.backoff(attempt - 1)
			logger.With(logger.Fields{
				"url":      req.URL,
				"attempt":  attempt + 1,
				"wait_ms":  wait.Milliseconds(),
				"last_err": lastErr.Error(),
			}).Warn(ctx, "Retrying request")
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := f.do(ctx, req)
		if err == nil {
			resp.Attempts = attempt + 1
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		if !retryable(err) {
			return nil, &FetchFailedError{URL: req.URL, Attempts: attempt + 1, LastErr: err}
		}
	}

	return nil, &FetchFailedError{URL: req.URL, Attempts: f.cfg.MaxRetries, LastErr: lastErr}
}

func (f *Fetcher) do(ctx context.Context, req Request) (*Response, error) {
	r := f.client.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}

	resp, err := r.Get(req.URL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &StatusError{URL: req.URL, StatusCode: resp.StatusCode()}
	}

	return &Response{
		URL:         req.URL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// backoff returns the wait after 0-indexed attempt n.
func (f *Fetcher) backoff(n int) time.Duration {
	return f.cfg.RetryBaseDelay * time.Duration(1<<uint(n))
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrMalformedRequest, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrMalformedRequest, raw)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
