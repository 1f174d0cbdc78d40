package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/graphview/internal/api"
	"github.com/dgnsrekt/graphview/internal/browser"
	"github.com/dgnsrekt/graphview/internal/capture"
	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/config"
	"github.com/dgnsrekt/graphview/internal/controller"
	"github.com/dgnsrekt/graphview/internal/events"
	"github.com/dgnsrekt/graphview/internal/journal"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/netutil"
	"github.com/dgnsrekt/graphview/internal/notify"
	"github.com/dgnsrekt/graphview/internal/plot"
	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/series/postgres"
	"github.com/dgnsrekt/graphview/internal/snapshot"
	"github.com/dgnsrekt/graphview/internal/web"
)

// browserStartPath is the graph page a launched browser opens.
const browserStartPath = "/graph/weather/brussels/temperature"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load graphview config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("graphview config loaded",
		"bind_addr", cfg.BindAddr,
		"port_candidates", cfg.PortCandidates,
		"port_auto_fallback", cfg.PortAutoFallback,
		"page_len", cfg.PageLen,
		"database", cfg.DatabaseURL != "",
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"browser_launch", cfg.BrowserLaunch,
		"snapshot_keep", cfg.SnapshotKeep,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("graphview stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	readerOpts := []series.ReaderOption{
		series.WithPageLen(cfg.PageLen),
		series.WithPrefix(cfg.AppPrefix),
	}
	if cfg.ChartOptionsFile != "" {
		opts, err := chart.LoadOptionsFile(cfg.ChartOptionsFile)
		if err != nil {
			return err
		}
		readerOpts = append(readerOpts, series.WithOptions(opts))
	}
	reader := series.NewReader(store, readerOpts...)

	pages, err := web.New(reader, cfg.AppTitle, cfg.AppPrefix)
	if err != nil {
		return err
	}

	snaps, err := snapshot.NewStore(cfg.SnapshotDir, snapshot.WithMaxSnapshots(cfg.SnapshotKeep))
	if err != nil {
		return err
	}

	journalWriter := journal.NewWriter(cfg.JournalDir, "loads", 0, 0)
	defer func() { _ = journalWriter.Close() }()
	broker := events.NewBroker()

	observers := []controller.Option{
		controller.WithObserver(broker.LoaderObserver()),
		controller.WithObserver(journalWriter.LoaderObserver()),
	}
	if cfg.NotifyURL != "" {
		observers = append(observers, controller.WithObserver(notify.NewNotifier(cfg.NotifyURL, nil).LoaderObserver()))
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind", "preferred", cfg.BindAddr, "error", err)
		return err
	}
	bindAddr := ln.Addr().String()
	baseURL := "http://" + bindAddr + cfg.AppPrefix

	var launcher *browser.Launcher
	if cfg.BrowserLaunch {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   baseURL + browserStartPath,
			BinaryPath: cfg.BrowserPath,
			ProfileDir: cfg.BrowserProfileDir,
			Headless:   cfg.BrowserHeadless,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Warn("browser launch failed, continuing without a managed browser", "error", err)
		}
		defer launcher.Stop()
	}

	evalTimeout := time.Duration(cfg.EvalTimeoutMS) * time.Millisecond
	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.TabURLFilter, evalTimeout)
	if err := cdpClient.Connect(ctx); err != nil {
		// Tabs reconnect lazily on the next call.
		slog.Warn("CDP not available at startup", "cdp_url", cfg.CDPURL(), "error", err)
	}
	defer func() { _ = cdpClient.Close() }()

	capturer := capture.NewCapturer(cfg.CDPURL(), capture.DefaultTimeout)
	defer capturer.Close()

	svcOpts := append([]controller.Option{
		controller.WithTabs(cdpClient),
		controller.WithReader(reader),
		controller.WithSnapshots(snaps),
		controller.WithFetcher(loader.NewFetcher(nil, time.Duration(cfg.FetchTimeoutMS)*time.Millisecond)),
		controller.WithPlotter(plot.New()),
		controller.WithCapturer(capturer),
		controller.WithBaseURL(baseURL),
	}, observers...)
	svc := controller.NewService(svcOpts...)
	h := api.NewServer(svc, api.Options{Pages: pages, Events: events.SSEHandler(broker)})

	srv := &http.Server{Addr: bindAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("graphview listening", "addr", bindAddr, "index", baseURL+"/", "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graphview shutdown failed", "error", err)
			return err
		}
		slog.Info("graphview shut down")
		return nil
	})
	return g.Wait()
}

// openStore returns the postgres store when DATABASE_URL is set and the
// in-memory demo store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (series.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		mem := series.NewMemoryStore()
		if cfg.SeedDemo {
			mem.SeedDemo()
		}
		slog.Info("using in-memory series store", "seeded", cfg.SeedDemo)
		return mem, func() {}, nil
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Init(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	if cfg.SeedDemo {
		demo := series.NewMemoryStore()
		demo.SeedDemo()
		if err := pg.Import(ctx, demo); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	slog.Info("using postgres series store", "seeded", cfg.SeedDemo)
	return pg, pg.Close, nil
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
