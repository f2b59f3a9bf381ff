package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/to-wer/media-renamer/internal/cache"
	"github.com/to-wer/media-renamer/internal/config"
	"github.com/to-wer/media-renamer/internal/fsx"
	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/metrics"
	"github.com/to-wer/media-renamer/internal/probe"
	"github.com/to-wer/media-renamer/internal/provider"
	"github.com/to-wer/media-renamer/internal/rename"
	"github.com/to-wer/media-renamer/internal/service"
	"github.com/to-wer/media-renamer/internal/tmdb"
	"github.com/to-wer/media-renamer/internal/watcher"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	db        *library.DB
	cache     *cache.Store // Optional: nil without a TMDB key
	repo      *library.ProposalRepository
	scans     *library.ScanMetadataRepository
	roots     rename.Roots
	proposals *service.ProposalService
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	a.db, err = openDB(cfg)
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	a.repo = library.NewProposalRepository(a.db)
	a.scans = library.NewScanMetadataRepository(a.db)

	parser, err := identify.NewParser(cfg.ParserConfiguration())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to compile parser patterns: %w", err)
	}

	providers, err := a.providers()
	if err != nil {
		a.Close()
		return nil, err
	}
	resolver := provider.NewResolver(providers...)

	pipelineOpts := []service.PipelineOption{
		service.WithTemplates(cfg.Media.MovieTemplate, cfg.Media.EpisodeTemplate),
		service.WithPipelineMetrics(a.metrics),
	}
	if cfg.Probe.Enabled {
		pipelineOpts = append(pipelineOpts, service.WithProber(probe.NewFFProbe(cfg.Probe.FFProbePath)))
		slog.Info("ffprobe enabled", "path", cfg.Probe.FFProbePath)
	}
	pipeline := service.NewPipeline(parser, resolver, pipelineOpts...)

	policy, err := rename.ParsePolicy(cfg.Media.DuplicateHandling)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.roots = rename.Roots{
		Default: cfg.Media.OutputPath,
		Movie:   cfg.Media.MovieOutputPath,
		Episode: cfg.Media.EpisodeOutputPath,
	}
	executor := rename.NewExecutor(fsx.New(), a.roots, policy)

	a.proposals = service.NewProposalService(a.repo, pipeline, executor, service.WithMetrics(a.metrics))

	slog.Info("Application initialized",
		"database", cfg.Database.Driver,
		"providers", resolver.Providers(),
		"patterns", len(parser.Configuration().Patterns),
		"duplicate_handling", executor.Policy(),
	)
	return a, nil
}

func openDB(cfg *config.Config) (*library.DB, error) {
	dsn := cfg.Database.Path
	if cfg.Database.Driver == string(library.DialectPostgres) {
		dsn = cfg.Database.URL
	}

	db, err := library.Open(library.Dialect(cfg.Database.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// providers builds the metadata provider chain from the TMDB settings.
func (a *app) providers() ([]provider.Provider, error) {
	cfg := a.cfg.TMDB
	if cfg.APIKey == "" {
		slog.Warn("TMDB API key not configured, titles are taken from file names")
		return nil, nil
	}

	opts := []tmdb.Option{tmdb.WithLanguage(cfg.Language)}
	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath, a.cfg.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to open TMDB cache: %w", err)
		}
		a.cache = store
		opts = append(opts, tmdb.WithCache(store))
	}

	providers := []provider.Provider{provider.NewTMDB(tmdb.NewClient(cfg.APIKey, opts...))}
	if cfg.FallbackToFilename {
		providers = append(providers, provider.Filename{})
	}
	return providers, nil
}

// newWatcher creates the reconciler for the configured watch folder.
func (a *app) newWatcher() *watcher.Service {
	opts := []watcher.Option{
		watcher.WithRecorder(a.scans),
		watcher.WithMetrics(a.metrics),
	}
	if a.cfg.Media.VerifyContainers {
		opts = append(opts, watcher.WithReadyCheck(func(path string) error {
			_, err := probe.CheckFile(path)
			return err
		}))
	}

	return watcher.New(watcher.Config{
		Root:         a.cfg.Media.WatchPath,
		Extensions:   a.cfg.Media.Extensions,
		Interval:     a.cfg.ScanInterval(),
		SkipRejected: a.cfg.Media.SkipRejected,
		WatchEvents:  a.cfg.Media.WatchEvents,
	}, fsx.New(), a.repo, a.proposals, opts...)
}

func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
