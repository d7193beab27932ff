package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lerngruppe/internal/application"
	"lerngruppe/internal/config"
	"lerngruppe/internal/infrastructure/database"
	"lerngruppe/internal/infrastructure/i18n"
	"lerngruppe/internal/infrastructure/legacycache"
	"lerngruppe/internal/infrastructure/memstore"
	"lerngruppe/internal/infrastructure/metrics"
	"lerngruppe/internal/infrastructure/natskv"
	"lerngruppe/internal/infrastructure/registry"
	"lerngruppe/internal/ports/output"
)

// app holds the wired registry for one command run.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	prom       *prometheus.Registry
	translator *i18n.Translator
	notifier   *application.ChangeNotifier
	service    *application.ParticipantService
	closers    []func()
}

// newApp wires ports: output adapters -> application (use cases).
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, prom: prometheus.NewRegistry()}
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.NewPrometheus(a.prom)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	cache, err := a.openLegacyCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	repo := registry.NewParticipantRepository(store)
	a.notifier = application.NewChangeNotifier(repo, logger, m)
	a.closers = append(a.closers, a.notifier.Close)
	a.service = application.NewParticipantService(
		repo,
		a.notifier,
		application.NewMigrationEngine(cache, repo, logger, m),
		logger,
		m,
	)
	a.translator = i18n.NewTranslator(cfg.Locale, logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (output.DocumentStore, error) {
	switch a.cfg.Store {
	case config.StorePostgres:
		if err := database.RunMigrations(a.cfg.DatabaseURL, a.logger); err != nil {
			return nil, fmt.Errorf("❌ Erreur lors des migrations: %w", err)
		}
		pool, err := database.NewPool(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("❌ Erreur lors de l'initialisation de la base de données: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return database.NewDocumentStore(pool, a.logger), nil
	case config.StoreNATS:
		s, err := natskv.Connect(a.cfg.NATSURL, a.cfg.NATSBucketPrefix, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		a.logger.Warn("in-memory store: participants are lost on exit")
		s := memstore.New()
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
}

func (a *app) openLegacyCache() (output.LegacyCache, error) {
	switch {
	case a.cfg.LegacySQLitePath != "":
		c, err := legacycache.OpenSQLite(a.cfg.LegacySQLitePath, legacycache.DefaultTable)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		return c, nil
	case a.cfg.LegacyJSONPath != "":
		return legacycache.NewMemoryCacheFromFile(a.cfg.LegacyJSONPath, application.LegacyCacheKey)
	default:
		return legacycache.NewMemoryCache(), nil
	}
}

// Close releases everything in reverse opening order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
