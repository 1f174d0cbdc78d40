// Package controller wires the graph loader, series reader and snapshot
// store into the operations the control API exposes.
package controller

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/graphview/internal/capture"
	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/render"
	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/snapshot"
)

// Tabs is the browser side: graph tabs and a surface per tab.
type Tabs interface {
	ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error)
	Surface(tabID string) render.Surface
}

// Capturer takes element screenshots of graph pages.
type Capturer interface {
	Element(ctx context.Context, pageURL, targetID string) (*capture.Shot, error)
}

// Plotter draws chart pages to PNG.
type Plotter interface {
	PNG(options chart.Options, data []chart.Series) ([]byte, error)
}

// Service wraps the graph operations.
type Service struct {
	tabs      Tabs
	reader    *series.Reader
	snaps     *snapshot.Store
	fetcher   *loader.Fetcher
	plotter   Plotter
	capturer  Capturer
	observers []loader.Observer
	baseURL   *url.URL

	mu      sync.Mutex
	loaders map[string]*loader.Loader
}

// Option configures a Service.
type Option func(*Service)

func WithTabs(t Tabs) Option {
	return func(s *Service) { s.tabs = t }
}

func WithReader(r *series.Reader) Option {
	return func(s *Service) { s.reader = r }
}

func WithSnapshots(st *snapshot.Store) Option {
	return func(s *Service) { s.snaps = st }
}

func WithFetcher(f *loader.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

func WithPlotter(p Plotter) Option {
	return func(s *Service) { s.plotter = p }
}

func WithCapturer(c Capturer) Option {
	return func(s *Service) { s.capturer = c }
}

// WithObserver is attached to every per-tab loader.
func WithObserver(o loader.Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithBaseURL resolves relative URIs, e.g. "/read/...", against base.
func WithBaseURL(base string) Option {
	return func(s *Service) {
		if u, err := url.Parse(strings.TrimSpace(base)); err == nil && u.Scheme != "" && u.Host != "" {
			s.baseURL = u
		}
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{loaders: make(map[string]*loader.Loader)}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = loader.NewFetcher(nil, 0)
	}
	return s
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return chart.NewError(chart.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

func unavailable(what string) error {
	return chart.NewError(chart.CodeCDPUnavailable, what+" is not configured", nil)
}

// resolveURI makes uri absolute against the base URL when it has no host.
func (s *Service) resolveURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	u, err := url.Parse(uri)
	if err != nil {
		return "", chart.NewError(chart.CodeValidation, fmt.Sprintf("invalid uri %q", uri), err)
	}
	if u.IsAbs() || s.baseURL == nil {
		return uri, nil
	}
	return s.baseURL.ResolveReference(u).String(), nil
}

// --- Tab / loader methods ---

func (s *Service) ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error) {
	if s.tabs == nil {
		return nil, unavailable("browser")
	}
	return s.tabs.ListTabs(ctx)
}

// LoadGraph runs one load against the tab's loader. Loaders are kept per tab
// so that stale-call tracking spans requests.
func (s *Service) LoadGraph(ctx context.Context, tabID string, req loader.Request) (render.Result, error) {
	if err := s.requireNonEmpty(tabID, "tab_id"); err != nil {
		return render.Result{}, err
	}
	if s.tabs == nil {
		return render.Result{}, unavailable("browser")
	}
	uri, err := s.resolveURI(req.URI)
	if err != nil {
		return render.Result{}, err
	}
	req.URI = uri
	req.TargetID = strings.TrimSpace(req.TargetID)
	return s.loaderFor(strings.TrimSpace(tabID)).LoadGraph(ctx, req)
}

func (s *Service) loaderFor(tabID string) *loader.Loader {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loaders[tabID]; ok {
		return l
	}
	opts := []loader.Option{loader.WithFetcher(s.fetcher), loader.WithScope(tabID)}
	for _, o := range s.observers {
		opts = append(opts, loader.WithObserver(o))
	}
	l := loader.New(s.tabs.Surface(tabID), opts...)
	s.loaders[tabID] = l
	slog.Debug("controller loader created", "tab_id", tabID)
	return l
}

// --- Series methods ---

func (s *Service) ListCollections(ctx context.Context) ([]series.Collection, error) {
	return s.reader.Collections(ctx)
}

func (s *Service) SearchLabels(ctx context.Context, query string) ([]string, error) {
	return s.reader.Search(ctx, query)
}

func (s *Service) SeriesSummary(ctx context.Context, q series.ReadQuery) (series.Summary, error) {
	for _, f := range []struct{ v, name string }{{q.Collection, "collection"}, {q.Label, "label"}, {q.Column, "column"}} {
		if err := s.requireNonEmpty(f.v, f.name); err != nil {
			return series.Summary{}, err
		}
	}
	page, err := s.reader.ReadPage(ctx, q)
	if err != nil {
		return series.Summary{}, err
	}
	return series.Summarize(page)
}

// --- Snapshot methods ---

func (s *Service) TakeSnapshot(ctx context.Context, req snapshot.Request) (snapshot.SnapshotMeta, error) {
	req, err := req.Normalize()
	if err != nil {
		return snapshot.SnapshotMeta{}, err
	}
	if req.URI, err = s.resolveURI(req.URI); err != nil {
		return snapshot.SnapshotMeta{}, err
	}

	meta := snapshot.SnapshotMeta{
		ID:        snapshot.NewID(),
		Source:    req.Source,
		URI:       req.URI,
		TargetID:  req.TargetID,
		Format:    "png",
		CreatedAt: time.Now().UTC(),
		Notes:     req.Notes,
	}

	var imageData []byte
	switch req.Source {
	case snapshot.SourceBrowser:
		imageData, err = s.browserImage(ctx, req, &meta)
	default:
		imageData, err = s.serverImage(ctx, req, &meta)
	}
	if err != nil {
		return snapshot.SnapshotMeta{}, err
	}

	if err := s.snaps.Save(meta, imageData); err != nil {
		return snapshot.SnapshotMeta{}, chart.NewError(chart.CodePlotFailed, "save snapshot", err)
	}
	meta.SizeBytes = len(imageData)
	slog.Info("snapshot saved", "id", meta.ID, "source", meta.Source, "bytes", meta.SizeBytes)
	return meta, nil
}

func (s *Service) serverImage(ctx context.Context, req snapshot.Request, meta *snapshot.SnapshotMeta) ([]byte, error) {
	if s.plotter == nil {
		return nil, chart.NewError(chart.CodePlotFailed, "plotter is not configured", nil)
	}
	resp, err := s.fetcher.Fetch(ctx, req.URI)
	if err != nil {
		return nil, err
	}

	opts := resp.Options.Clone()
	if opts == nil {
		opts = chart.DefaultOptions()
	}
	if req.Width > 0 {
		opts.SetWidth(req.Width)
	}
	if req.Height > 0 {
		opts["height"] = req.Height
	}

	img, err := s.plotter.PNG(opts, resp.Data)
	if err != nil {
		return nil, chart.NewError(chart.CodePlotFailed, "plot snapshot", err)
	}
	meta.Width, meta.Height = imageSize(img, opts.Width(), opts.Height())
	meta.SeriesLength, _ = resp.SeriesLength()
	return img, nil
}

func (s *Service) browserImage(ctx context.Context, req snapshot.Request, meta *snapshot.SnapshotMeta) ([]byte, error) {
	if s.capturer == nil {
		return nil, unavailable("capture")
	}
	shot, err := s.capturer.Element(ctx, req.URI, req.TargetID)
	if err != nil {
		return nil, err
	}
	meta.Width, meta.Height = imageSize(shot.PNG, 0, 0)
	return shot.PNG, nil
}

// imageSize reads the PNG header, falling back to the given size.
func imageSize(data []byte, width, height int) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return width, height
	}
	return cfg.Width, cfg.Height
}

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error) {
	return s.snaps.List()
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return snapshot.SnapshotMeta{}, err
	}
	return s.snaps.Get(strings.TrimSpace(id))
}

func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return nil, "", err
	}
	return s.snaps.ReadImage(strings.TrimSpace(id))
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return err
	}
	return s.snaps.Delete(strings.TrimSpace(id))
}
