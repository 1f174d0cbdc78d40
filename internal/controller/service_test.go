package controller

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dgnsrekt/graphview/internal/capture"
	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/plot"
	"github.com/dgnsrekt/graphview/internal/render"
	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/snapshot"
)

type stubSurface struct {
	mu       sync.Mutex
	plots    int
	disabled []string
}

func (s *stubSurface) ElementWidth(_ context.Context, id string) (int, error) {
	if id != "graph-1" {
		return 0, chart.NewError(chart.CodeTargetNotFound, id, nil)
	}
	return 640, nil
}

func (s *stubSurface) Plot(_ context.Context, _ string, _ chart.Options, _ []chart.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plots++
	return nil
}

func (s *stubSurface) DisableControl(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = append(s.disabled, id)
	return true, nil
}

type stubTabs struct {
	mu       sync.Mutex
	surfaces map[string]*stubSurface
}

func newStubTabs() *stubTabs { return &stubTabs{surfaces: map[string]*stubSurface{}} }

func (t *stubTabs) ListTabs(context.Context) ([]cdpcontrol.TabInfo, error) {
	return []cdpcontrol.TabInfo{{TabID: "tab-1", URL: "http://127.0.0.1:8190/graph/weather/paris/temperature"}}, nil
}

func (t *stubTabs) Surface(tabID string) render.Surface {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.surfaces[tabID]
	if !ok {
		s = &stubSurface{}
		t.surfaces[tabID] = s
	}
	return s
}

type stubCapturer struct {
	png []byte
	err error
}

func (c *stubCapturer) Element(_ context.Context, pageURL, targetID string) (*capture.Shot, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &capture.Shot{URL: pageURL, TargetID: targetID, PNG: c.png}, nil
}

func chartServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/read/weather/paris/temperature" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"options":{"width":900,"height":300,"series":[{},{"label":"t","stroke":"red"}]},"data":[[1704067200,1704070800,1704074400],[4,5,6]]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func smallPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() = %v", err)
	}
	return buf.Bytes()
}

func newSnapshotStore(t *testing.T) *snapshot.Store {
	t.Helper()
	st, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	return st
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("tab-1", "tab_id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	err := s.requireNonEmpty("   ", "tab_id")
	var got *chart.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("requireNonEmpty() = %T; want *chart.CodedError", err)
	}
	if got.Code != chart.CodeValidation {
		t.Fatalf("requireNonEmpty() code = %q; want %q", got.Code, chart.CodeValidation)
	}
	if got.Message != "tab_id is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got.Message, "tab_id is required")
	}
}

func TestLoadGraphRequiresTab(t *testing.T) {
	s := NewService(WithTabs(newStubTabs()))
	_, err := s.LoadGraph(context.Background(), " ", loader.Request{URI: "http://x", TargetID: "graph-1"})
	if !chart.IsCode(err, chart.CodeValidation) {
		t.Fatalf("LoadGraph() = %v; want %s", err, chart.CodeValidation)
	}

	s = NewService()
	_, err = s.LoadGraph(context.Background(), "tab-1", loader.Request{URI: "http://x", TargetID: "graph-1"})
	if !chart.IsCode(err, chart.CodeCDPUnavailable) {
		t.Fatalf("LoadGraph() without browser = %v; want %s", err, chart.CodeCDPUnavailable)
	}
	if _, err := s.ListTabs(context.Background()); !chart.IsCode(err, chart.CodeCDPUnavailable) {
		t.Fatalf("ListTabs() without browser = %v; want %s", err, chart.CodeCDPUnavailable)
	}
}

func TestLoadGraphResolvesRelativeURI(t *testing.T) {
	srv := chartServer(t)
	tabs := newStubTabs()

	var mu sync.Mutex
	var events []loader.Event
	s := NewService(
		WithTabs(tabs),
		WithBaseURL(srv.URL),
		WithObserver(func(ev loader.Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}),
	)

	res, err := s.LoadGraph(context.Background(), "tab-1", loader.Request{
		URI:           "/read/weather/paris/temperature",
		TargetID:      "graph-1",
		PageLength:    5,
		NextControlID: "graph-1-next",
	})
	if err != nil {
		t.Fatalf("LoadGraph() = %v", err)
	}
	if res.Width != 640 || res.SeriesLength != 3 || !res.NextDisabled {
		t.Fatalf("LoadGraph() = %+v; want width 640, 3 rows, next disabled", res)
	}
	surface := tabs.surfaces["tab-1"]
	if surface.plots != 1 || len(surface.disabled) != 1 || surface.disabled[0] != "graph-1-next" {
		t.Fatalf("surface = %+v", surface)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[1].Type != loader.EventRendered || events[1].Scope != "tab-1" {
		t.Fatalf("events = %+v; want started then rendered scoped to tab-1", events)
	}
}

func TestLoaderPerTabIsReused(t *testing.T) {
	s := NewService(WithTabs(newStubTabs()))
	a := s.loaderFor("tab-1")
	if b := s.loaderFor("tab-1"); a != b {
		t.Fatal("loaderFor() returned a new loader for the same tab")
	}
	if c := s.loaderFor("tab-2"); a == c {
		t.Fatal("loaderFor() shared a loader across tabs")
	}
}

func TestResolveURI(t *testing.T) {
	s := NewService(WithBaseURL("http://127.0.0.1:8190/app/"))
	tests := []struct {
		in, want string
	}{
		{in: "/read/a/b/c?ui.page=1", want: "http://127.0.0.1:8190/read/a/b/c?ui.page=1"},
		{in: "read/a/b/c", want: "http://127.0.0.1:8190/app/read/a/b/c"},
		{in: "https://example.com/x", want: "https://example.com/x"},
	}
	for _, tt := range tests {
		got, err := s.resolveURI(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("resolveURI(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if got, _ := NewService().resolveURI("/read/a"); got != "/read/a" {
		t.Fatalf("resolveURI() without base = %q; want unchanged", got)
	}
}

func TestSeriesSummary(t *testing.T) {
	store := series.NewMemoryStore()
	store.SeedDemo()
	s := NewService(WithReader(series.NewReader(store)))

	sum, err := s.SeriesSummary(context.Background(), series.ReadQuery{Collection: "weather", Label: "paris", Column: "temperature"})
	if err != nil {
		t.Fatalf("SeriesSummary() = %v", err)
	}
	if sum.Count != 720 || sum.Min >= sum.Max {
		t.Fatalf("SeriesSummary() = %+v", sum)
	}

	_, err = s.SeriesSummary(context.Background(), series.ReadQuery{Collection: "weather", Label: "paris"})
	if !chart.IsCode(err, chart.CodeValidation) {
		t.Fatalf("SeriesSummary() without column = %v; want %s", err, chart.CodeValidation)
	}
}

func TestTakeServerSnapshot(t *testing.T) {
	srv := chartServer(t)
	s := NewService(WithSnapshots(newSnapshotStore(t)), WithPlotter(plot.New()), WithBaseURL(srv.URL))

	meta, err := s.TakeSnapshot(context.Background(), snapshot.Request{URI: "/read/weather/paris/temperature", Width: 400, Notes: "weekly"})
	if err != nil {
		t.Fatalf("TakeSnapshot() = %v", err)
	}
	if meta.Source != snapshot.SourceServer || meta.Width != 400 || meta.Height != 300 || meta.SeriesLength != 3 {
		t.Fatalf("TakeSnapshot() = %+v", meta)
	}
	if meta.URI != srv.URL+"/read/weather/paris/temperature" {
		t.Fatalf("URI = %q; want resolved", meta.URI)
	}

	data, format, err := s.ReadSnapshotImage(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("ReadSnapshotImage() = %v", err)
	}
	if format != "png" || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatalf("image format = %q; want png", format)
	}

	metas, err := s.ListSnapshots(context.Background())
	if err != nil || len(metas) != 1 || metas[0].Notes != "weekly" {
		t.Fatalf("ListSnapshots() = %+v, %v", metas, err)
	}
}

func TestTakeServerSnapshotFetchError(t *testing.T) {
	srv := chartServer(t)
	s := NewService(WithSnapshots(newSnapshotStore(t)), WithPlotter(plot.New()))

	_, err := s.TakeSnapshot(context.Background(), snapshot.Request{URI: srv.URL + "/read/missing/x/y"})
	if !chart.IsCode(err, chart.CodeFetchFailed) {
		t.Fatalf("TakeSnapshot() = %v; want %s", err, chart.CodeFetchFailed)
	}
}

func TestTakeBrowserSnapshot(t *testing.T) {
	s := NewService(WithSnapshots(newSnapshotStore(t)), WithCapturer(&stubCapturer{png: smallPNG(t, 320, 180)}))

	meta, err := s.TakeSnapshot(context.Background(), snapshot.Request{
		Source:   "browser",
		URI:      "http://127.0.0.1:8190/graph/weather/paris/temperature",
		TargetID: "graph-1",
	})
	if err != nil {
		t.Fatalf("TakeSnapshot() = %v", err)
	}
	if meta.Source != snapshot.SourceBrowser || meta.Width != 320 || meta.Height != 180 || meta.TargetID != "graph-1" {
		t.Fatalf("TakeSnapshot() = %+v", meta)
	}

	if err := s.DeleteSnapshot(context.Background(), meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() = %v", err)
	}
	if _, err := s.GetSnapshot(context.Background(), meta.ID); !chart.IsCode(err, chart.CodeSnapshotNotFound) {
		t.Fatalf("GetSnapshot() after delete = %v; want %s", err, chart.CodeSnapshotNotFound)
	}
}

func TestTakeBrowserSnapshotWithoutCapturer(t *testing.T) {
	s := NewService(WithSnapshots(newSnapshotStore(t)))
	_, err := s.TakeSnapshot(context.Background(), snapshot.Request{Source: "browser", URI: "http://x/graph", TargetID: "g"})
	if !chart.IsCode(err, chart.CodeCDPUnavailable) {
		t.Fatalf("TakeSnapshot() = %v; want %s", err, chart.CodeCDPUnavailable)
	}
}

func TestSnapshotIDValidation(t *testing.T) {
	s := NewService(WithSnapshots(newSnapshotStore(t)))
	if _, err := s.GetSnapshot(context.Background(), " "); !chart.IsCode(err, chart.CodeValidation) {
		t.Fatalf("GetSnapshot(blank) = %v; want %s", err, chart.CodeValidation)
	}
	if _, _, err := s.ReadSnapshotImage(context.Background(), "../etc"); !chart.IsCode(err, chart.CodeValidation) {
		t.Fatalf("ReadSnapshotImage(bad) = %v; want %s", err, chart.CodeValidation)
	}
}
