package cdpcontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	versionTimeout = 5 * time.Second
	listTimeout    = 10 * time.Second
)

// browserConn is one browser-level websocket carrying flat sessions. Graph
// tabs only need Runtime.evaluate, so no domains are enabled and events are
// dropped.
type browserConn struct {
	httpBase string // e.g. "http://127.0.0.1:9220"

	mu   sync.Mutex
	conn net.Conn
	seq  atomic.Int64

	waitersMu sync.Mutex
	waiters   map[int64]chan []byte
}

// cdpMessage is both the outgoing command and the incoming reply.
type cdpMessage struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    any             `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newBrowserConn(httpBase string) *browserConn {
	return &browserConn{
		httpBase: strings.TrimRight(httpBase, "/"),
		waiters:  make(map[int64]chan []byte),
	}
}

// connect resolves the debugger URL from /json/version and dials it.
func (b *browserConn) connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := b.getJSON(ctx, "/json/version", versionTimeout, &version); err != nil {
		return fmt.Errorf("cdp: browser ws url: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return fmt.Errorf("cdp: browser ws url: empty webSocketDebuggerUrl")
	}

	slog.Debug("cdp connecting", "ws_url", version.WebSocketDebuggerURL)
	conn, _, _, err := ws.Dial(ctx, version.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("cdp: dial: %w", err)
	}
	b.conn = conn
	b.waiters = make(map[int64]chan []byte)
	go b.readLoop(conn)
	return nil
}

func (b *browserConn) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func (b *browserConn) connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// readLoop routes replies to their waiters until conn fails.
func (b *browserConn) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("cdp read loop exit", "error", err)
			b.mu.Lock()
			if b.conn == conn {
				b.conn = nil
			}
			b.mu.Unlock()
			b.failWaiters()
			return
		}

		var head struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(data, &head) != nil || head.ID <= 0 {
			continue
		}
		if ch := b.takeWaiter(head.ID); ch != nil {
			ch <- data
		}
	}
}

func (b *browserConn) addWaiter(id int64) chan []byte {
	ch := make(chan []byte, 1)
	b.waitersMu.Lock()
	b.waiters[id] = ch
	b.waitersMu.Unlock()
	return ch
}

func (b *browserConn) takeWaiter(id int64) chan []byte {
	b.waitersMu.Lock()
	defer b.waitersMu.Unlock()
	ch, ok := b.waiters[id]
	if !ok {
		return nil
	}
	delete(b.waiters, id)
	return ch
}

func (b *browserConn) failWaiters() {
	b.waitersMu.Lock()
	defer b.waitersMu.Unlock()
	for id, ch := range b.waiters {
		close(ch)
		delete(b.waiters, id)
	}
}

// call sends method on sessionID ("" for the browser target) and decodes the
// reply's result into out, which may be nil.
func (b *browserConn) call(ctx context.Context, sessionID, method string, params, out any) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("cdp: not connected")
	}

	id := b.seq.Add(1)
	data, err := json.Marshal(cdpMessage{ID: id, Method: method, SessionID: sessionID, Params: params})
	if err != nil {
		return fmt.Errorf("cdp: marshal %s: %w", method, err)
	}

	ch := b.addWaiter(id)
	b.mu.Lock()
	err = wsutil.WriteClientText(conn, data)
	b.mu.Unlock()
	if err != nil {
		b.takeWaiter(id)
		return fmt.Errorf("cdp: send %s: %w", method, err)
	}

	var raw []byte
	select {
	case reply, ok := <-ch:
		if !ok {
			return fmt.Errorf("cdp: connection closed")
		}
		raw = reply
	case <-ctx.Done():
		b.takeWaiter(id)
		return ctx.Err()
	}

	var msg cdpMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("cdp: decode %s reply: %w", method, err)
	}
	if msg.Error != nil {
		return fmt.Errorf("cdp: %s: %s", method, msg.Error.Message)
	}
	if out == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, out); err != nil {
		return fmt.Errorf("cdp: decode %s result: %w", method, err)
	}
	return nil
}

// attachToTarget opens a flat session on the tab.
func (b *browserConn) attachToTarget(ctx context.Context, tabID string) (string, error) {
	var res struct {
		SessionID string `json:"sessionId"`
	}
	params := target.AttachToTarget(target.ID(tabID)).WithFlatten(true)
	if err := b.call(ctx, "", target.CommandAttachToTarget, params, &res); err != nil {
		return "", err
	}
	if res.SessionID == "" {
		return "", fmt.Errorf("cdp: attach: empty session id")
	}
	return res.SessionID, nil
}

func (b *browserConn) detachFromTarget(ctx context.Context, sessionID string) error {
	params := struct {
		SessionID string `json:"sessionId"`
	}{SessionID: sessionID}
	return b.call(ctx, "", target.CommandDetachFromTarget, params, nil)
}

// evaluate runs js in the session and returns its value. A string value is
// returned unquoted; anything else as raw JSON.
func (b *browserConn) evaluate(ctx context.Context, sessionID, js string) (string, error) {
	params := runtime.Evaluate(js).WithReturnByValue(true).WithAwaitPromise(true)

	var res struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := b.call(ctx, sessionID, runtime.CommandEvaluate, params, &res); err != nil {
		return "", err
	}
	if res.ExceptionDetails != nil {
		return "", fmt.Errorf("cdp: eval exception: %s", res.ExceptionDetails.Text)
	}

	var s string
	if err := json.Unmarshal(res.Result.Value, &s); err != nil {
		return string(res.Result.Value), nil
	}
	return s, nil
}

// listTargets reads the open targets from /json/list.
func (b *browserConn) listTargets(ctx context.Context) ([]*target.Info, error) {
	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := b.getJSON(ctx, "/json/list", listTimeout, &entries); err != nil {
		return nil, err
	}

	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(e.ID),
			Type:     e.Type,
			Title:    e.Title,
			URL:      e.URL,
		})
	}
	return out, nil
}

// getJSON fetches one of the browser's HTTP discovery endpoints.
func (b *browserConn) getJSON(ctx context.Context, path string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cdp: %s: HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cdp: %s: %w", path, err)
	}
	return nil
}
