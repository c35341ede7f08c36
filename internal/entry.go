// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/server"
	"github.com/starford/quire/internal/site"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if app.logger == nil {
		app.logger = newLogger(app.config.App, app.logOutput)
	}
	return app, nil
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

// newBuilder opens the source tree and prepares a site builder from the
// configuration.
func (a *application) newBuilder(liveReload bool, recorder metrics.Recorder) (*site.Builder, *storage.FS, error) {
	cfg := a.config

	src, err := storage.NewFS(cfg.Site.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}

	// Directories that live inside the source tree but are not book pages.
	var exclude []string
	for _, dir := range []string{cfg.Site.LayoutsDir(), cfg.Site.Output, filepath.Dir(cfg.Search.SQLitePath)} {
		if rel, ok := within(src.Root(), dir); ok {
			exclude = append(exclude, rel)
		}
	}

	b, err := site.New(src, site.Options{
		Title:         cfg.Site.Title,
		Description:   cfg.Site.Description,
		Language:      cfg.Site.Language,
		LayoutsDir:    cfg.Site.LayoutsDir(),
		AssetsDir:     cfg.Site.Assets,
		Exclude:       exclude,
		DefaultLayout: cfg.Site.DefaultLayout,
		IndexLayout:   cfg.Site.IndexLayout,
		Highlight:     cfg.Site.Highlight,
		UnsafeHTML:    cfg.Site.UnsafeHTML,
		Strict:        cfg.Site.Strict,
		Workers:       cfg.Site.WorkerCount(),
		LiveReload:    liveReload,
		Chapters:      cfg.Chapters,
	}, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init builder: %w", err)
	}
	if recorder != nil {
		b.WithRecorder(recorder)
	}
	return b, src, nil
}

// within reports whether dir is strictly inside root and returns its
// slash-separated path relative to root.
func within(root, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Build builds the book once and publishes it to the output directory.
// Nothing is written when the build fails.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("source", cfg.Site.Source),
		slog.String("output", cfg.Site.Output),
		slog.Int("chapters", len(cfg.Chapters)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, _, err := app.newBuilder(false, nil)
	if err != nil {
		return err
	}

	built, err := b.Build(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	pub, err := storage.NewDirPublisher(cfg.Site.Output)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	if err := pub.Publish(built.Pages); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	logger.Info("Site published",
		slog.String("output", pub.Dir()),
		slog.Int("pages", len(built.Pages)),
		slog.String("checksum", built.Checksum))
	return nil
}

// rebuilder serialises rebuilds while serving. It publishes only when the
// output changed and keeps the last good site when a build fails.
type rebuilder struct {
	mu      sync.Mutex
	builder *site.Builder
	pub     storage.Publisher // nil keeps the site in memory only
	db      index.PageIndex
	broker  *sse.Broker // nil when no page listens for reloads
	onBuilt func(*site.Site)
	logger  *slog.Logger

	checksum string
}

func (r *rebuilder) notify(res sse.BuildResult) {
	if r.broker != nil {
		r.broker.PublishBuild(res)
	}
}

func (r *rebuilder) rebuild(ctx context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Rebuilding", slog.Int("changed", len(changed)))

	built, err := r.builder.Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("rebuild failed; keeping the last good site", slog.String("error", err.Error()))
		r.notify(sse.BuildResult{Err: err})
		return
	}

	if built.Checksum != r.checksum && r.pub != nil {
		if err := r.pub.Publish(built.Pages); err != nil {
			r.logger.Error("publish failed", slog.String("error", err.Error()))
			r.notify(sse.BuildResult{Err: err})
			return
		}
	}
	r.checksum = built.Checksum

	if err := index.Sync(r.db, built.Documents, built.Chapters, r.logger); err != nil {
		r.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
	if r.onBuilt != nil {
		r.onBuilt(built)
	}
	r.notify(sse.BuildResult{Checksum: built.Checksum, Pages: len(built.Pages)})
}

// watchOptions returns the directories whose changes trigger a rebuild: the
// source tree, plus the layouts dir when it lives elsewhere.
func (a *application) watchOptions(src *storage.FS, ignore ...string) watch.Options {
	cfg := a.config
	roots := []string{src.Root()}
	if _, inside := within(src.Root(), cfg.Site.LayoutsDir()); !inside {
		if info, err := os.Stat(cfg.Site.LayoutsDir()); err == nil && info.IsDir() {
			roots = append(roots, cfg.Site.LayoutsDir())
		}
	}
	return watch.Options{
		Roots:  roots,
		Ignore: append(ignore, filepath.Dir(cfg.Search.SQLitePath)),
	}
}

// Serve builds the book, serves it locally and rebuilds on every source change.
// A failing initial build is returned; later failures keep the last good site.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Site.Source),
		slog.String("output", cfg.Site.Output),
		slog.String("sqlite_path", cfg.Search.SQLitePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	b, src, err := app.newBuilder(true, recorder)
	if err != nil {
		return err
	}

	built, err := b.Build(ctx)
	if err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	pub, err := storage.NewDirPublisher(cfg.Site.Output)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	if err := pub.Publish(built.Pages); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	db, err := openIndex(cfg.Search.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := index.Sync(db, built.Documents, built.Chapters, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(built.Checksum)
	defer broker.Close()

	rb := &rebuilder{
		builder:  b,
		pub:      pub,
		db:       db,
		broker:   broker,
		logger:   logger,
		checksum: built.Checksum,
	}

	r := server.NewRouter(server.Options{
		SiteDir:    pub.Dir(),
		Index:      db,
		Events:     broker,
		Metrics:    metrics.HTTPHandler(reg),
		RequestLog: cfg.App.LogLevel <= slog.LevelDebug,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch sources and rebuild on change.
	g.Go(func() error {
		return watch.Watch(gCtx, app.watchOptions(src, pub.Dir()), logger, func(changed []string) {
			rb.rebuild(gCtx, changed)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close the broker first so open event streams end and Shutdown
		// does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP builds the book in memory and serves MCP tools over stdio until
// stdin closes or ctx is cancelled. Source changes rebuild the site the tools
// answer from. Logs go to stderr unless another output was configured, since
// stdout carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	b, src, err := app.newBuilder(false, nil)
	if err != nil {
		return err
	}
	built, err := b.Build(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	db, err := openIndex(cfg.Search.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := index.Sync(db, built.Documents, built.Chapters, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(cfg.Site.Title, app.version, src, db, built)
	rb := &rebuilder{
		builder:  b,
		db:       db,
		onBuilt:  srv.SetSite,
		logger:   logger,
		checksum: built.Checksum,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Watch(gCtx, app.watchOptions(src), logger, func(changed []string) {
			rb.rebuild(gCtx, changed)
		})
	})

	g.Go(func() error {
		logger.Info("Serving MCP over stdio", slog.Int("chapters", len(built.Chapters)))
		err := srv.ServeStdio(gCtx)
		// stdin closed: stop watching too.
		if err == nil {
			err = context.Canceled
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openIndex(path string) (*index.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return db, nil
}
