// Package web serves the graphview pages: the index, search results, series
// and graph fragments, the chart data endpoint and the embedded assets.
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/series"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

var staticTypes = map[string]string{
	"css": "text/css; charset=utf-8",
	"js":  "text/javascript; charset=utf-8",
}

// Pages renders the HTML surface over a series reader.
type Pages struct {
	reader    *series.Reader
	title     string
	prefix    string
	templates *template.Template
}

func New(reader *series.Reader, title, prefix string) (*Pages, error) {
	funcMap := template.FuncMap{
		"pathEscape": url.PathEscape,
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Pages{
		reader:    reader,
		title:     title,
		prefix:    strings.TrimRight(prefix, "/"),
		templates: templates,
	}, nil
}

// Mount registers the page routes on router.
func (p *Pages) Mount(router chi.Router) {
	router.Get("/", p.handleIndex)
	router.Head("/", p.handleIndex)
	router.Get("/static/{filename}", p.handleStatic)
	router.Head("/static/{filename}", p.handleStatic)
	router.Get("/favicon.ico", handleFavicon)
	router.Head("/favicon.ico", handleFavicon)

	router.Get("/search", p.handleSearch)
	router.Get("/series/{collection}/{series}", p.handleSeries)
	router.Post("/series/{collection}/{series}", p.handleSeries)
	router.Get("/graph/{collection}/{label}/{column}", p.handleGraph)
	router.Get("/graph/{collection}/{label}/{column}/page/{page}", p.handleGraph)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(1, "application/json"))
		r.Get("/read/{collection}/{label}/{column}", p.handleRead)
	})
	router.Get("/read/{collection}/{label}/{column}/export.xlsx", p.handleExport)
}

func (p *Pages) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("web template render failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (p *Pages) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web json encode failed", "error", err)
	}
}

// writeError maps coded errors to a status with a plain text body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := chart.StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("web request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("web request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	http.Error(w, err.Error(), status)
}

// pathParam returns an unescaped, trimmed route parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}
