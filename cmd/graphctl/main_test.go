package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func chartServer(t *testing.T, points int) *httptest.Server {
	t.Helper()
	xs := make([]float64, points)
	ys := make([]float64, points)
	for i := range xs {
		xs[i] = float64(1704067200 + i*3600)
		ys[i] = float64(i % 7)
	}
	body, err := json.Marshal(map[string]any{
		"options": map[string]any{"width": 100, "height": 200, "series": []any{map[string]any{}, map[string]any{"label": "v"}}},
		"data":    [][]float64{xs, ys},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadDisablesNextOnShortPage(t *testing.T) {
	srv := chartServer(t, 12)
	out := filepath.Join(t.TempDir(), "graph.html")

	summary, err := execute(t, "load", srv.URL, "--page-len", "500", "--out", out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(summary, "graph loaded") || !strings.Contains(summary, "next disabled") {
		t.Fatalf("summary = %q", summary)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	html := string(raw)
	if !strings.Contains(html, "<svg") {
		t.Fatal("output has no svg")
	}
	if !strings.Contains(html, `id="next-btn" disabled=`) {
		t.Fatalf("next-btn not disabled in %q", html)
	}
	if !strings.Contains(html, `data-plotted-width="900"`) {
		t.Fatalf("options.width not taken from the element: %q", html)
	}
}

func TestLoadFullPageKeepsNextEnabled(t *testing.T) {
	srv := chartServer(t, 10)
	got, err := execute(t, "load", srv.URL, "--page-len", "10")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Contains(got, "disabled") {
		t.Fatalf("next should stay enabled: %q", got)
	}
}

func TestLoadMissingTarget(t *testing.T) {
	srv := chartServer(t, 3)
	_, err := execute(t, "load", srv.URL, "--target", "nowhere")
	if err == nil || !strings.Contains(err.Error(), "TARGET_NOT_FOUND") {
		t.Fatalf("load() error = %v; want TARGET_NOT_FOUND", err)
	}
}

func TestRenderSVG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "chart.json")
	if err := os.WriteFile(in, []byte(`{"options":{"width":300,"height":150},"data":[[1,2,3],[3,1,2]]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := execute(t, "render", in, "--width", "400")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(got), "<svg") || !strings.Contains(got, `width="400"`) {
		t.Fatalf("render output = %.120q", got)
	}

	if _, err := execute(t, "render", filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("render(missing) error = nil; want error")
	}
}

func TestSearchDemo(t *testing.T) {
	got, err := execute(t, "search", "PAR")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(got, "weather/paris") || strings.Contains(got, "weather/lisbon") {
		t.Fatalf("search output = %q", got)
	}

	got, err = execute(t, "search", "zzz")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(got, "no matching series") {
		t.Fatalf("search output = %q", got)
	}
}

func TestConfigStage(t *testing.T) {
	got, err := execute(t, "config", "dev", "--bucket", "my-bucket")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var cfg struct {
		EnvironmentVariables map[string]*string `json:"environment_variables"`
	}
	if err := json.Unmarshal([]byte(got), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := cfg.EnvironmentVariables["DB_BUCKET"]; v == nil || *v != "my-bucket" {
		t.Fatalf("DB_BUCKET = %v; want my-bucket", v)
	}

	if _, err := execute(t, "config", "prod"); err == nil {
		t.Fatal("config(prod) error = nil; want error")
	}
}
