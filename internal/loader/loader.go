// Package loader fetches chart pages and hands them to the renderer.
//
// A Loader is bound to one surface. Per target element it remembers the most
// recent call: starting a new load cancels the previous one for that target,
// and a load that finishes after a newer one began is reported as SUPERSEDED
// without drawing anything.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/render"
)

// Request describes one load.
type Request struct {
	URI      string
	TargetID string
	// PageLength enables the last-page check when > 0.
	PageLength int
	// NextControlID defaults to render.DefaultNextControlID.
	NextControlID string
}

// Observer receives every load event. It runs on the loading goroutine and
// must not block.
type Observer func(Event)

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher replaces the default Fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(l *Loader) { l.fetcher = f }
}

// WithObserver adds an event observer.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// WithScope tags emitted events, e.g. with the browser tab the surface lives in.
func WithScope(scope string) Option {
	return func(l *Loader) { l.scope = scope }
}

// targetState is the bookkeeping for one target element. It lives only while
// at least one call for the target is between begin and done.
type targetState struct {
	latest uint64
	cancel context.CancelFunc
	render sync.Mutex
	calls  int
}

// Loader loads chart pages into one surface.
type Loader struct {
	surface   render.Surface
	fetcher   *Fetcher
	observers []Observer
	scope     string

	mu      sync.Mutex
	seq     uint64
	targets map[string]*targetState
}

// New builds a Loader drawing into surface.
func New(surface render.Surface, opts ...Option) *Loader {
	l := &Loader{
		surface: surface,
		targets: make(map[string]*targetState),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = NewFetcher(nil, 0)
	}
	return l
}

// LoadPage is LoadGraph with a page length and the default next control.
func (l *Loader) LoadPage(ctx context.Context, uri, targetID string, pageLength int) (render.Result, error) {
	return l.LoadGraph(ctx, Request{URI: uri, TargetID: targetID, PageLength: pageLength})
}

// LoadGraph fetches req.URI once and renders the response into req.TargetID.
func (l *Loader) LoadGraph(ctx context.Context, req Request) (render.Result, error) {
	if strings.TrimSpace(req.URI) == "" {
		return render.Result{}, chart.NewError(chart.CodeValidation, "uri is required", nil)
	}
	if strings.TrimSpace(req.TargetID) == "" {
		return render.Result{}, chart.NewError(chart.CodeValidation, "target_id is required", nil)
	}
	if req.PageLength < 0 {
		return render.Result{}, chart.NewError(chart.CodeValidation, "page_length must be positive", nil)
	}

	ctx, st, seq, done := l.begin(ctx, req.TargetID)
	defer done()
	start := time.Now()
	l.emit(l.event(EventStarted, req, seq, start))

	resp, err := l.fetcher.Fetch(ctx, req.URI)
	if l.stale(st, seq) {
		return render.Result{}, l.superseded(req, seq, start)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = chart.NewError(chart.CodeFetchFailed, "GET "+req.URI, err)
		}
		return render.Result{}, l.fail(req, seq, start, err)
	}

	st.render.Lock()
	defer st.render.Unlock()
	if l.stale(st, seq) {
		return render.Result{}, l.superseded(req, seq, start)
	}

	res, err := render.Render(ctx, l.surface, resp, render.Params{
		TargetID:      req.TargetID,
		PageLength:    req.PageLength,
		NextControlID: req.NextControlID,
	})
	if err != nil {
		return render.Result{}, l.fail(req, seq, start, err)
	}

	ev := l.event(EventRendered, req, seq, start)
	ev.Result = &res
	l.emit(ev)
	slog.Info("loader render ok",
		"scope", l.scope,
		"target_id", req.TargetID,
		"uri", req.URI,
		"series_length", res.SeriesLength,
		"next_disabled", res.NextDisabled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// InFlight reports whether a load for targetID is running.
func (l *Loader) InFlight(targetID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.targets[targetID]
	return ok && st.cancel != nil
}

// begin registers a call for targetID, cancelling the previous one. done
// forgets the target once its last call returns.
func (l *Loader) begin(ctx context.Context, targetID string) (context.Context, *targetState, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	st, ok := l.targets[targetID]
	if !ok {
		st = &targetState{}
		l.targets[targetID] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	l.seq++
	seq := l.seq
	st.latest, st.cancel = seq, cancel
	st.calls++
	l.mu.Unlock()

	return ctx, st, seq, func() {
		l.mu.Lock()
		if st.latest == seq {
			st.cancel = nil
		}
		st.calls--
		if st.calls == 0 {
			delete(l.targets, targetID)
		}
		l.mu.Unlock()
		cancel()
	}
}

func (l *Loader) stale(st *targetState, seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return st.latest != seq
}

func (l *Loader) superseded(req Request, seq uint64, start time.Time) error {
	err := chart.NewError(chart.CodeSuperseded, "a newer load for "+req.TargetID+" started", nil)
	ev := l.event(EventSuperseded, req, seq, start)
	ev.Code = chart.CodeSuperseded
	l.emit(ev)
	slog.Debug("loader superseded", "scope", l.scope, "target_id", req.TargetID, "uri", req.URI, "seq", seq)
	return err
}

func (l *Loader) fail(req Request, seq uint64, start time.Time, err error) error {
	ev := l.event(EventFailed, req, seq, start)
	ev.Code = chart.CodeOf(err)
	ev.Error = err.Error()
	l.emit(ev)
	slog.Warn("loader failed", "scope", l.scope, "target_id", req.TargetID, "uri", req.URI, "code", ev.Code, "error", err)
	return err
}

func (l *Loader) event(typ string, req Request, seq uint64, start time.Time) Event {
	return Event{
		Type:       typ,
		Scope:      l.scope,
		TargetID:   req.TargetID,
		URI:        req.URI,
		PageLength: req.PageLength,
		Seq:        seq,
		DurationMS: time.Since(start).Milliseconds(),
		Time:       time.Now().UTC(),
	}
}

func (l *Loader) emit(ev Event) {
	for _, o := range l.observers {
		o(ev)
	}
}
