package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/layoffwatch/internal/fetcher"
)

type failingWaiter struct{ err error }

func (w failingWaiter) Wait(context.Context) error { return w.err }

func TestNewChromeDefaults(t *testing.T) {
	c := NewChrome(Config{Settle: -time.Second}, nil)
	if c.cfg.Timeout != defaultTimeout {
		t.Errorf("timeout = %v", c.cfg.Timeout)
	}
	if c.cfg.Settle != 0 {
		t.Errorf("negative settle should clamp to 0, got %v", c.cfg.Settle)
	}
	if c.cfg.UserAgent != defaultUserAgent {
		t.Errorf("user agent = %q", c.cfg.UserAgent)
	}
}

func TestAllocatorOptionsGrowWithConfig(t *testing.T) {
	base := len(NewChrome(Config{}, nil).allocatorOptions())
	full := len(NewChrome(Config{
		ExecPath: "/usr/bin/chromium",
		Proxy:    fetcher.ProxyConfig{Enabled: true, Host: "proxy", Port: 8080},
	}, nil).allocatorOptions())
	if full != base+1 {
		t.Errorf("exec path should add exactly one option: base=%d full=%d", base, full)
	}
}

func TestRenderHonoursLimiter(t *testing.T) {
	want := errors.New("limiter closed")
	c := NewChrome(Config{}, failingWaiter{err: want})
	if _, err := c.Render(context.Background(), "https://example.com"); !errors.Is(err, want) {
		t.Errorf("expected limiter error before launching a browser, got %v", err)
	}
}
