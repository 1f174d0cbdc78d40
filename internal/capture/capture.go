// Package capture takes element screenshots of graph pages in a remote
// Chromium over chromedp.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/graphview/internal/chart"
)

const DefaultTimeout = 30 * time.Second

// Shot is one captured element image.
type Shot struct {
	URL      string
	TargetID string
	PNG      []byte
	Elapsed  time.Duration
}

// Capturer opens a fresh tab per capture against an existing browser.
type Capturer struct {
	cdpURL  string
	timeout time.Duration

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewCapturer(cdpURL string, timeout time.Duration) *Capturer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Capturer{cdpURL: cdpURL, timeout: timeout}
}

func (c *Capturer) allocator() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdpURL == "" {
		return nil, chart.NewError(chart.CodeCDPUnavailable, "missing CDP URL", nil)
	}
	if c.allocCtx == nil {
		slog.Info("capture allocator start", "cdp_url", c.cdpURL)
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)
	}
	return c.allocCtx, nil
}

// Element navigates to pageURL, waits for the uPlot chart inside targetID to
// be visible and returns a PNG of the target element.
func (c *Capturer) Element(ctx context.Context, pageURL, targetID string) (*Shot, error) {
	if err := validate(pageURL, targetID); err != nil {
		return nil, err
	}
	allocCtx, err := c.allocator()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()
	runCtx, runCancel := context.WithTimeout(tabCtx, c.timeout)
	defer runCancel()
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	start := time.Now()
	var buf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(chartSelector(targetID), chromedp.ByQuery),
		chromedp.Screenshot(elementSelector(targetID), &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		slog.Warn("capture element failed", "url", truncateURL(pageURL), "target_id", targetID, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if runCtx.Err() != nil {
			return nil, chart.NewError(chart.CodeEvalTimeout, "capture timed out", err)
		}
		return nil, chart.NewError(chart.CodeCDPUnavailable, "capture failed", err)
	}

	shot := &Shot{URL: pageURL, TargetID: targetID, PNG: buf, Elapsed: time.Since(start)}
	slog.Info("capture element ok", "url", truncateURL(pageURL), "target_id", targetID,
		"bytes", len(buf), "duration_ms", shot.Elapsed.Milliseconds())
	return shot, nil
}

func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCtx, c.allocCancel = nil, nil
	}
}

func validate(pageURL, targetID string) error {
	if strings.TrimSpace(targetID) == "" {
		return chart.NewError(chart.CodeValidation, "target id is required", nil)
	}
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return chart.NewError(chart.CodeValidation, fmt.Sprintf("invalid page url %q", pageURL), err)
	}
	return nil
}

func elementSelector(targetID string) string {
	return "#" + cssEscape(targetID)
}

func chartSelector(targetID string) string {
	return elementSelector(targetID) + " .uplot"
}

// cssEscape escapes an id for use in an id selector.
func cssEscape(id string) string {
	var b strings.Builder
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-' && i > 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		case r > 0x7f:
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "\\%x ", r)
		}
	}
	return b.String()
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
