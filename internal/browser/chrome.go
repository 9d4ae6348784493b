// Package browser renders client-side pages in headless Chrome.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/timmy/layoffwatch/internal/fetcher"
	"github.com/timmy/layoffwatch/internal/logger"
)

const (
	defaultTimeout   = 90 * time.Second
	defaultSettle    = 5 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Config configures a Chrome renderer.
type Config struct {
	Headless  bool
	ExecPath  string
	Timeout   time.Duration // whole render, navigation included
	Settle    time.Duration // wait after load for client-side tables to fill
	UserAgent string
	Proxy     fetcher.ProxyConfig
}

// Waiter is satisfied by *fetcher.Fetcher; renders wait on the same limiter as HTTP calls.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Chrome renders pages with a fresh browser process per call.
type Chrome struct {
	cfg    Config
	waiter Waiter
}

// NewChrome creates a renderer. waiter may be nil.
func NewChrome(cfg Config, waiter Waiter) *Chrome {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Chrome{cfg: cfg, waiter: waiter}
}

// Render navigates to pageURL, lets the page settle, scrolls to the bottom to
// trigger lazy content and returns the final document HTML.
func (c *Chrome) Render(ctx context.Context, pageURL string) (string, error) {
	if c.waiter != nil {
		if err := c.waiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.cfg.Timeout)
	defer cancelTimeout()

	var actions []chromedp.Action
	if c.cfg.Proxy.Enabled && c.cfg.Proxy.Username != "" {
		c.listenProxyAuth(taskCtx)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(c.cfg.Settle/2),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	logger.With(logger.Fields{"url": pageURL, "size": len(html)}).
		WithDuration(time.Since(start).Milliseconds()).
		Debug(ctx, "Rendered page")

	return html, nil
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.UserAgent(c.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.Proxy.Enabled {
		opts = append(opts, chromedp.ProxyServer("http://"+c.cfg.Proxy.Server()))
	} else {
		opts = append(opts, chromedp.Flag("no-proxy-server", true))
	}
	return opts
}

// listenProxyAuth answers proxy auth challenges with the configured credentials.
// With request interception enabled every paused request must be continued.
func (c *Chrome) listenProxyAuth(ctx context.Context) {
	creds := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: c.cfg.Proxy.Username,
		Password: c.cfg.Proxy.Password,
	}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, creds))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
			}()
		}
	})
}
