// Package notify posts plain-text notifications to an ntfy-style endpoint.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dgnsrekt/graphview/internal/loader"
)

const (
	defaultTitle   = "graphview"
	sendTimeout    = 10 * time.Second
	maxPendingSend = 4
)

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, title, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("notification endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Notifier reports failed graph loads.
type Notifier struct {
	endpoint string
	client   *http.Client
	pending  *semaphore.Weighted
}

func NewNotifier(endpoint string, client *http.Client) *Notifier {
	return &Notifier{
		endpoint: endpoint,
		client:   client,
		pending:  semaphore.NewWeighted(maxPendingSend),
	}
}

// LoaderObserver sends one notification per failed load. Sends run in the
// background; when maxPendingSend are already in flight the event is dropped.
func (n *Notifier) LoaderObserver() loader.Observer {
	return func(ev loader.Event) {
		if ev.Type != loader.EventFailed {
			return
		}
		if !n.pending.TryAcquire(1) {
			slog.Warn("notification dropped, too many pending", "target_id", ev.TargetID, "code", ev.Code)
			return
		}
		go func() {
			defer n.pending.Release(1)
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := Send(ctx, n.client, n.endpoint, defaultTitle, FailureMessage(ev)); err != nil {
				slog.Warn("load failure notification failed", "endpoint", n.endpoint, "error", err)
			}
		}()
	}
}

// FailureMessage renders a failed load event as one line.
func FailureMessage(ev loader.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph load failed: target=%s uri=%s", ev.TargetID, ev.URI)
	if ev.Scope != "" {
		fmt.Fprintf(&b, " tab=%s", ev.Scope)
	}
	if ev.Code != "" {
		fmt.Fprintf(&b, " code=%s", ev.Code)
	}
	if ev.Error != "" {
		b.WriteString(": " + ev.Error)
	}
	return b.String()
}
