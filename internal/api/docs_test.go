package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/render"
	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/snapshot"
)

type stubService struct {
	loadErr  error
	lastTab  string
	lastLoad loader.Request
	image    []byte
	snaps    []snapshot.SnapshotMeta
}

func (s *stubService) ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error) {
	return []cdpcontrol.TabInfo{{TabID: "tab-1", URL: "http://127.0.0.1:8188/", Title: "graphview"}}, nil
}
func (s *stubService) LoadGraph(ctx context.Context, tabID string, req loader.Request) (render.Result, error) {
	s.lastTab = tabID
	s.lastLoad = req
	if s.loadErr != nil {
		return render.Result{}, s.loadErr
	}
	return render.Result{TargetID: req.TargetID, Width: 640, SeriesLength: 12, PageLength: req.PageLength, LastPage: true, ControlFound: true, NextDisabled: true}, nil
}
func (s *stubService) ListCollections(ctx context.Context) ([]series.Collection, error) {
	return nil, nil
}
func (s *stubService) SearchLabels(ctx context.Context, query string) ([]string, error) {
	return []string{"weather/paris"}, nil
}
func (s *stubService) SeriesSummary(ctx context.Context, q series.ReadQuery) (series.Summary, error) {
	if q.Label == "missing" {
		return series.Summary{}, chart.NewError(chart.CodeSeriesNotFound, "no such series", nil)
	}
	return series.Summary{Count: 3, Min: 1, Max: 3, Mean: 2}, nil
}
func (s *stubService) TakeSnapshot(ctx context.Context, req snapshot.Request) (snapshot.SnapshotMeta, error) {
	return snapshot.SnapshotMeta{ID: "snap-1", Source: snapshot.SourceServer, URI: req.URI, Format: "png"}, nil
}
func (s *stubService) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error) {
	return s.snaps, nil
}
func (s *stubService) GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error) {
	return snapshot.SnapshotMeta{}, chart.NewError(chart.CodeSnapshotNotFound, "snapshot not found: "+id, nil)
}
func (s *stubService) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return s.image, "png", nil
}
func (s *stubService) DeleteSnapshot(ctx context.Context, id string) error { return nil }

type stubPages struct{}

func (stubPages) Mount(router chi.Router) {
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("index"))
	})
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, Options{})
	w := serve(t, h, http.MethodGet, "/docs", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if !strings.Contains(body, "darkMode") {
		t.Fatalf("docs missing darkMode attribute")
	}
	if strings.Contains(body, "{{v}}") || !strings.Contains(body, "elements@"+stoplightVersion) {
		t.Fatalf("docs asset version not substituted")
	}
}

func TestHealthz(t *testing.T) {
	w := serve(t, NewServer(&stubService{}, Options{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestLoadGraphPassesRequest(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, Options{})
	w := serve(t, h, http.MethodPost, "/api/v1/graphs/load",
		`{"uri":"/graph/weather/paris/temp/page/0","tab_id":"tab-1","target_id":"g1","page_length":500,"next_control_id":"g1-next"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if svc.lastTab != "tab-1" {
		t.Fatalf("tab = %q; want tab-1", svc.lastTab)
	}
	want := loader.Request{URI: "/graph/weather/paris/temp/page/0", TargetID: "g1", PageLength: 500, NextControlID: "g1-next"}
	if svc.lastLoad != want {
		t.Fatalf("request = %+v; want %+v", svc.lastLoad, want)
	}
	var res render.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Width != 640 || !res.NextDisabled {
		t.Fatalf("result = %+v", res)
	}
}

func TestMapErrStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{chart.NewError(chart.CodeValidation, "bad", nil), http.StatusBadRequest},
		{chart.NewError(chart.CodeTargetNotFound, "no element", nil), http.StatusNotFound},
		{chart.NewError(chart.CodeEmptySeries, "no data", nil), http.StatusUnprocessableEntity},
		{chart.NewError(chart.CodeSuperseded, "newer load", nil), http.StatusConflict},
		{chart.NewError(chart.CodeFetchFailed, "503", nil), http.StatusBadGateway},
		{chart.NewError(chart.CodeEvalTimeout, "slow", nil), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &stubService{loadErr: tt.err}
		w := serve(t, NewServer(svc, Options{}), http.MethodPost, "/api/v1/graphs/load", `{"uri":"/x","tab_id":"t","target_id":"g"}`)
		if w.Code != tt.want {
			t.Fatalf("LoadGraph(%v) status = %d; want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestSeriesSummaryNotFound(t *testing.T) {
	h := NewServer(&stubService{}, Options{})
	w := serve(t, h, http.MethodGet, "/api/v1/series/weather/missing/temp/summary", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/v1/series/weather/paris/temp/summary?page=1", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":3`) {
		t.Fatalf("summary = %d %s", w.Code, w.Body.String())
	}
}

func TestSnapshotRoutes(t *testing.T) {
	svc := &stubService{image: []byte("\x89PNG\r\n\x1a\nrest")}
	h := NewServer(svc, Options{})

	w := serve(t, h, http.MethodPost, "/api/v1/snapshots", `{"uri":"/graph/weather/paris/temp/page/0"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/snapshots/snap-1/image") {
		t.Fatalf("take = %d %s", w.Code, w.Body.String())
	}

	w = serve(t, h, http.MethodGet, "/api/v1/snapshots/snap-1/image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("image status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("Content-Type = %q; want image/png", got)
	}
	if w.Body.String() != string(svc.image) {
		t.Fatalf("image body mismatch")
	}

	w = serve(t, h, http.MethodGet, "/api/v1/snapshots/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get missing = %d; want 404", w.Code)
	}

	w = serve(t, h, http.MethodGet, "/api/v1/snapshots", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"snapshots":[]`) {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}

	w = serve(t, h, http.MethodDelete, "/api/v1/snapshots/snap-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d; want 204", w.Code)
	}
}

func TestListSnapshotsLimit(t *testing.T) {
	svc := &stubService{snaps: []snapshot.SnapshotMeta{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	h := NewServer(svc, Options{})

	w := serve(t, h, http.MethodGet, "/api/v1/snapshots?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Snapshots []struct {
			ID       string `json:"id"`
			ImageURL string `json:"image_url"`
		} `json:"snapshots"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Snapshots) != 2 || body.Snapshots[1].ImageURL != "/api/v1/snapshots/b/image" {
		t.Fatalf("snapshots = %+v; want a, b with image urls", body.Snapshots)
	}
}

func TestEventsAndPagesMounted(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": ok\n\n"))
	})
	h := NewServer(&stubService{}, Options{Pages: stubPages{}, Events: events})

	w := serve(t, h, http.MethodGet, "/api/v1/events", "")
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("events Content-Type = %q", got)
	}
	w = serve(t, h, http.MethodGet, "/", "")
	if w.Body.String() != "index" {
		t.Fatalf("index = %q", w.Body.String())
	}
}

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/v1/tabs", 200, slog.LevelInfo},
		{"/healthz", 200, slog.LevelDebug},
		{"/graphview/static/app.css", 200, slog.LevelDebug},
		{"/api/v1/snapshots/x", 404, slog.LevelWarn},
		{"/healthz", 503, slog.LevelError},
	}
	for _, tc := range cases {
		if got := requestLevel(tc.path, tc.status); got != tc.want {
			t.Fatalf("requestLevel(%q, %d) = %v; want %v", tc.path, tc.status, got, tc.want)
		}
	}
}
