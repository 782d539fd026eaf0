// Package factories assembles the assistant's components from configuration.
package factories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JuanR0/biblio/internal/cache"
	"github.com/JuanR0/biblio/internal/config"
	"github.com/JuanR0/biblio/internal/knowledge"
	"github.com/JuanR0/biblio/internal/monitoring"
	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/retrieval"
	"github.com/JuanR0/biblio/internal/storage"
	"github.com/JuanR0/biblio/internal/synonyms"
	"github.com/JuanR0/biblio/internal/textproc"
)

// App bundles the engine with the resources it owns.
type App struct {
	Config *config.Config
	Logger *observability.Logger
	Engine *retrieval.Engine
	// Audit is nil when the audit trail is disabled.
	Audit *storage.AuditRepository

	cache cache.Client
	db    *sql.DB
}

// NewLogger builds the process logger.
func NewLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
}

// NewTaxonomy restricts the default taxonomy to the configured categories
// and applies threshold overrides. Unknown categories get no keywords, the
// default threshold and the general fallback answer.
func NewTaxonomy(cfg *config.Config) retrieval.Taxonomy {
	base := retrieval.DefaultTaxonomy()
	scoring := NewScoring(cfg)
	general, _ := base.Category(base.General)

	tax := base
	tax.Categories = make([]retrieval.CategorySpec, 0, len(cfg.Knowledge.Categories))
	for _, name := range cfg.Knowledge.Categories {
		spec, ok := base.Category(name)
		if !ok {
			spec = retrieval.CategorySpec{
				Name:      name,
				Threshold: scoring.DefaultThreshold,
				Fallback:  general.Fallback,
			}
		}
		if v, ok := cfg.Retrieval.Thresholds[name]; ok {
			spec.Threshold = v
		}
		if name == base.General {
			spec.Threshold = cfg.Retrieval.MinConfidence
		}
		tax.Categories = append(tax.Categories, spec)
	}
	return tax
}

// NewScoring applies configured overrides to the default scoring constants.
func NewScoring(cfg *config.Config) retrieval.ScoringConfig {
	scoring := retrieval.DefaultScoringConfig()
	scoring.FallbackFloor = cfg.Retrieval.FallbackConfidence
	scoring.GeneralMargin = cfg.Retrieval.GeneralMargin
	return scoring
}

// NewExtractor returns the basic extractor, or the lemmatization service
// backed by the basic extractor when the service is enabled.
func NewExtractor(cfg *config.Config, tax retrieval.Taxonomy, logger *observability.Logger) (textproc.FeatureExtractor, error) {
	basic := textproc.NewBasicExtractor(tax.StopWords, tax.CriticalWords)
	if !cfg.Linguistic.Enabled {
		return basic, nil
	}

	lemma, err := textproc.NewLemmaExtractor(textproc.LemmaConfig{
		Endpoint: cfg.Linguistic.Endpoint,
		Model:    cfg.Linguistic.Model,
		Timeout:  cfg.Linguistic.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return textproc.NewFallbackExtractor(lemma, basic, logger.WithComponent("extractor")), nil
}

// NewCacheClient opens the configured cache backend.
func NewCacheClient(ctx context.Context, cfg *config.Config) (cache.Client, error) {
	switch cfg.Cache.Driver {
	case "redis":
		return cache.NewRedisClient(ctx, cache.RedisConfig{
			URL:      cfg.Cache.Redis.URL,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	case "memory":
		return cache.NewMemoryClient(cfg.Cache.MaxEntries, cfg.Cache.SweepInterval), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

// OpenAuditDB opens and migrates the audit database.
func OpenAuditDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	driver := cfg.DatabaseDriverName()
	db, err := storage.Open(ctx, storage.DatabaseConfig{
		Driver:       driver,
		DSN:          cfg.DatabaseDSN(),
		MaxOpenConns: cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Database.Postgres.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Build loads knowledge and synonyms and wires the engine. Cache and audit
// failures are logged and the feature is disabled; they never stop startup.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}
	app := &App{Config: cfg, Logger: logger}

	tax := NewTaxonomy(cfg)
	scoring := NewScoring(cfg)

	extractor, err := NewExtractor(cfg, tax, logger)
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	store := knowledge.Load(knowledge.LoaderConfig{
		Dir:         cfg.Knowledge.Dir,
		Categories:  cfg.Knowledge.Categories,
		Files:       cfg.Knowledge.Files,
		ExampleData: cfg.Knowledge.ExampleData,
	}, logger)

	idx := synonyms.LoadOrEmpty(cfg.Synonyms.Path, synonyms.DefaultExclusions, logger)

	opts := []retrieval.Option{
		retrieval.WithLogger(logger),
		retrieval.WithMonitor(retrieval.NewLogMonitor(logger)),
		retrieval.WithExtractor(extractor),
		retrieval.WithConfidenceCalculator(retrieval.NewConfidenceCalculatorWithShare(cfg.Retrieval.CategoryShare)),
	}

	if cfg.Cache.Enabled {
		client, err := NewCacheClient(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("Response cache disabled")
		} else {
			app.cache = client
			opts = append(opts, retrieval.WithResponseCache(retrieval.NewResponseCache(client, logger, retrieval.ResponseCacheConfig{
				Enabled:   true,
				TTL:       cfg.Cache.TTL,
				KeyPrefix: cfg.Cache.KeyPrefix,
			})))
		}
	}

	if cfg.Audit.Enabled {
		db, err := OpenAuditDB(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("driver", cfg.Database.Driver).Msg("Audit trail disabled")
		} else {
			app.db = db
			app.Audit = storage.NewAuditRepository(db)
			auditLogger := monitoring.NewAuditLogger(logger, app.Audit).WithTimeout(cfg.Audit.WriteTimeout)
			opts = append(opts, retrieval.WithAuditSink(auditLogger))
		}
	}

	engine, err := retrieval.NewEngine(store, idx, tax, scoring, opts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	app.Engine = engine

	info := engine.Info()
	logger.Info().
		Str("mode", info.Mode).
		Int("rules", info.TotalRules).
		Int("synonym_groups", info.SynonymGroups).
		Bool("cache", info.CacheEnabled).
		Bool("audit", info.AuditEnabled).
		Msg("Engine ready")

	return app, nil
}

// Ping checks the optional backends.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the cache and database connections.
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
