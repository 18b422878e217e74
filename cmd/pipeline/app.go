package main

import (
	"context"
	"fmt"

	"movie-pipeline/internal/aggregate"
	"movie-pipeline/internal/config"
	"movie-pipeline/internal/ledger"
	"movie-pipeline/internal/logger"
	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/metrics/datadog"
	"movie-pipeline/internal/metrics/prompush"
	"movie-pipeline/internal/notify"
	"movie-pipeline/internal/persist"
	"movie-pipeline/internal/pipeline"
	"movie-pipeline/internal/report"
	"movie-pipeline/internal/store"
	"movie-pipeline/internal/views"
	"movie-pipeline/pkg/utils"

	"github.com/sirupsen/logrus"
)

// app holds the components of one command invocation.
type app struct {
	cfg     *config.Configuration
	log     *logrus.Logger
	store   store.Store
	ledger  *ledger.Ledger
	runner  *pipeline.Runner
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Configuration) (*app, error) {
	log, err := logger.New(&cfg.Log, "pipeline")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	defs := views.Defaults(cfg.CastViewDelimiter)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		a.store = store.NewMemoryStore(defs)
	default:
		s, err := store.ConnectMongo(ctx, cfg.MongoDBConnectionURI, cfg.MongoDBName, cfg.MongoDBTimeout, logger.Component(log, "store"))
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	a.closers = append(a.closers, func() error { return a.store.Close(context.Background()) })

	backend, err := newMetricsBackend(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	rec := metrics.NewRecorder(backend)

	opts := []pipeline.RunnerOption{
		pipeline.WithExporter(report.NewExporter(utils.NewOutputManager(cfg.ReportDir), logger.Component(log, "report"))),
	}
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ledger = l
		a.closers = append(a.closers, l.Close)
		opts = append(opts, pipeline.WithLedger(l))
	}
	if cfg.ArchiveEnabled() {
		cli, err := report.NewMinioClient(ctx, report.ArchiveConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			UseSSL:    cfg.ArchiveUseSSL,
			Bucket:    cfg.ArchiveBucket,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithArchiver(report.NewArchiver(cli, cfg.ArchiveBucket, cfg.ArchivePrefix, logger.Component(log, "archive"))))
	}
	if cfg.NotifyEnabled() {
		p, err := notify.Dial(cfg.NotifyAMQPURL, cfg.NotifyExchange, logger.Component(log, "notify"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		opts = append(opts, pipeline.WithNotifier(p))
	}

	a.runner = pipeline.NewRunner(
		pipeline.NewCleaner(logger.Component(log, "clean"), rec, pipeline.WithListDelimiter(cfg.ListDelimiter)),
		persist.NewWriter(a.store, logger.Component(log, "persist"), rec),
		aggregate.NewEngine(a.store, defs, logger.Component(log, "views"), rec),
		aggregate.NewAccessors(a.store, defs),
		log, rec, opts...,
	)
	return a, nil
}

// runLedger returns the run history, or errLedgerDisabled.
func (a *app) runLedger() (*ledger.Ledger, error) {
	if a.ledger == nil {
		return nil, errLedgerDisabled
	}
	return a.ledger, nil
}

func newMetricsBackend(cfg *config.Configuration) (metrics.Backend, error) {
	switch cfg.MetricsBackend {
	case config.MetricsPrometheus:
		return prompush.NewBackend(cfg.PushgatewayJob, cfg.PushgatewayURL)
	case config.MetricsDatadog:
		return datadog.NewBackend(datadog.Config{Addr: cfg.DatadogAddr, Namespace: cfg.DatadogPrefix})
	default:
		return nil, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Close failed")
		}
	}
	a.closers = nil
}

func sourcesFrom(args, configured []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(configured) > 0 {
		return configured, nil
	}
	return nil, fmt.Errorf("%w: pass files as arguments or set SOURCE_PATHS", pipeline.ErrNoSources)
}
