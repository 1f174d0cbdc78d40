package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/render"
	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/snapshot"
)

type Service interface {
	ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error)
	LoadGraph(ctx context.Context, tabID string, req loader.Request) (render.Result, error)
	ListCollections(ctx context.Context) ([]series.Collection, error)
	SearchLabels(ctx context.Context, query string) ([]string, error)
	SeriesSummary(ctx context.Context, q series.ReadQuery) (series.Summary, error)
	TakeSnapshot(ctx context.Context, req snapshot.Request) (snapshot.SnapshotMeta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.SnapshotMeta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Pages mounts the HTML surface next to the API.
type Pages interface {
	Mount(router chi.Router)
}

// Options holds the optional parts of the server.
type Options struct {
	Pages  Pages
	Events http.Handler
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("graphview control API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if opts.Events != nil {
		router.Get("/api/v1/events", opts.Events.ServeHTTP)
	}

	registerHealthHandlers(api)
	registerGraphHandlers(api, svc)
	registerSeriesHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	if opts.Pages != nil {
		opts.Pages.Mount(router)
	}
	return router
}

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/healthz", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *chart.CodedError
	if errors.As(err, &coded) {
		return huma.NewError(chart.StatusOf(err), fmt.Sprintf("%s: %s", coded.Code, coded.Message))
	}
	return huma.Error500InternalServerError(err.Error())
}
