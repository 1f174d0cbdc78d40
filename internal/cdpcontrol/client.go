// Package cdpcontrol drives graph pages open in a Chromium browser over the
// DevTools protocol. Each matching page target is exposed as a render.Surface
// so the loader can draw into a live tab with the page's own uPlot.
package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/render"
)

// TabInfo describes a graph tab mapped from a browser target.
type TabInfo struct {
	TabID string `json:"tab_id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// tabSession tracks the flattened CDP session attached to one tab. evalMu
// serializes evaluations so a tab draws one graph at a time.
type tabSession struct {
	info   TabInfo
	evalMu sync.Mutex

	mu        sync.Mutex
	sessionID string
}

func (s *tabSession) dropSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := s.sessionID
	s.sessionID = ""
	return sid
}

// Client keeps one browser connection and the set of graph tabs it exposes.
// Tabs are re-listed lazily when an unknown tab id is asked for.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu   sync.Mutex
	cdp  *browserConn
	tabs map[target.ID]*tabSession
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		tabs:        make(map[target.ID]*tabSession),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return chart.NewError(chart.CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpcontrol connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newBrowserConn(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return chart.NewError(chart.CodeCDPUnavailable, "connect to CDP failed", err)
	}
	if err := c.syncTabsLocked(ctx); err != nil {
		slog.Error("cdpcontrol initial tab sync failed", "error", err)
		c.cleanupLocked()
		return err
	}

	slog.Info("cdpcontrol connect ok", "cdp_url", c.cdpURL, "tabs", len(c.tabs))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

// cleanupLocked detaches sessions without closing the tabs.
func (c *Client) cleanupLocked() {
	if c.cdp != nil {
		for _, session := range c.tabs {
			if sid := session.dropSession(); sid != "" {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = c.cdp.detachFromTarget(ctx, sid)
				cancel()
			}
		}
		c.cdp.close()
		c.cdp = nil
	}
	clear(c.tabs)
}

// ListTabs returns the graph tabs currently open, sorted by id.
func (c *Client) ListTabs(ctx context.Context) ([]TabInfo, error) {
	if err := c.refreshTabs(ctx); err != nil {
		slog.Warn("cdpcontrol list tabs failed", "error", err)
		return nil, err
	}

	c.mu.Lock()
	tabs := make([]TabInfo, 0, len(c.tabs))
	for _, s := range c.tabs {
		tabs = append(tabs, s.info)
	}
	c.mu.Unlock()

	slices.SortFunc(tabs, func(a, b TabInfo) int { return strings.Compare(a.TabID, b.TabID) })
	return tabs, nil
}

// Surface returns the surface of one tab.
func (c *Client) Surface(tabID string) render.Surface {
	return &TabSurface{client: c, tabID: strings.TrimSpace(tabID)}
}

// evalOnTab runs an envelope-returning expression in the tab. Evaluations on
// one tab are serialized.
func (c *Client) evalOnTab(ctx context.Context, tabID, js string, out any) error {
	if tabID == "" {
		return chart.NewError(chart.CodeValidation, "tab id is required", nil)
	}

	session, err := c.resolveTab(ctx, tabID)
	if err != nil {
		return err
	}
	session.evalMu.Lock()
	defer session.evalMu.Unlock()
	return c.evalOnSession(ctx, session, js, out)
}

func (c *Client) evalOnSession(ctx context.Context, session *tabSession, js string, out any) error {
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil || !cdp.connected() {
		return chart.NewError(chart.CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx, cdp, session)
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("cdpcontrol eval failed", "tab_id", session.info.TabID, "error", err)
		session.dropSession()

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return chart.NewError(chart.CodeEvalTimeout, "evaluation timed out", err)
		}
		return chart.NewError(chart.CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return chart.NewError(chart.CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = chart.CodeEvalFailure
		}
		return chart.NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return chart.NewError(chart.CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns a CDP session ID for the tab, attaching if needed.
func (c *Client) ensureSession(ctx context.Context, cdp *browserConn, session *tabSession) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.sessionID != "" {
		return session.sessionID, nil
	}
	sid, err := cdp.attachToTarget(ctx, session.info.TabID)
	if err != nil {
		return "", chart.NewError(chart.CodeCDPUnavailable, "attach to target failed", err)
	}
	session.sessionID = sid
	slog.Debug("cdpcontrol session attached", "tab_id", session.info.TabID, "session_id", sid)
	return sid, nil
}

// resolveTab looks the tab up, re-listing targets once on a miss.
func (c *Client) resolveTab(ctx context.Context, tabID string) (*tabSession, error) {
	if s := c.lookupTab(tabID); s != nil {
		return s, nil
	}
	if err := c.refreshTabs(ctx); err != nil {
		return nil, err
	}
	if s := c.lookupTab(tabID); s != nil {
		return s, nil
	}
	return nil, chart.NewError(chart.CodeTabNotFound, "tab not found: "+tabID, nil)
}

func (c *Client) lookupTab(tabID string) *tabSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabs[target.ID(tabID)]
}

func (c *Client) refreshTabs(ctx context.Context) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncTabsLocked(ctx)
}

func (c *Client) syncTabsLocked(ctx context.Context) error {
	if c.cdp == nil {
		return chart.NewError(chart.CodeCDPUnavailable, "CDP client not connected", nil)
	}

	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return chart.NewError(chart.CodeCDPUnavailable, "failed to list targets", err)
	}

	live := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if !c.isGraphTab(t) {
			continue
		}
		live[t.TargetID] = true
		info := TabInfo{TabID: string(t.TargetID), URL: t.URL, Title: t.Title}
		if session, ok := c.tabs[t.TargetID]; ok {
			session.info = info
		} else {
			c.tabs[t.TargetID] = &tabSession{info: info}
		}
	}
	maps.DeleteFunc(c.tabs, func(id target.ID, _ *tabSession) bool { return !live[id] })

	slog.Debug("cdpcontrol tab sync", "targets", len(targets), "tabs", len(c.tabs))
	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdp != nil && c.cdp.connected() {
		return nil
	}
	return c.connectLocked(ctx)
}

// isGraphTab keeps page targets whose URL contains the filter, ignoring case.
func (c *Client) isGraphTab(t *target.Info) bool {
	if t.Type != "page" {
		return false
	}
	return c.tabFilter == "" || strings.Contains(strings.ToLower(t.URL), c.tabFilter)
}
