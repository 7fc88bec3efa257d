package app

import (
	"context"
	"fmt"

	"sage/internal/domain"
	"sage/internal/domain/auth"
	"sage/internal/domain/catalog"
	"sage/internal/domain/homologation"
	"sage/internal/domain/ingest"
	"sage/internal/domain/materialize"
	"sage/internal/domain/notify"
	"sage/internal/domain/reader"
	"sage/internal/domain/schema"
	"sage/internal/domain/submission"
	"sage/internal/infrastructure/cache"
	v1 "sage/internal/infrastructure/http/v1"
	"sage/internal/infrastructure/mail"
	"sage/internal/infrastructure/monitoring"
	"sage/internal/infrastructure/storage/postgres"
	"sage/internal/infrastructure/storage/postgres/catalog_repo"
	"sage/internal/infrastructure/storage/postgres/dynamic_repo"
	"sage/internal/infrastructure/storage/postgres/homologation_repo"
	"sage/internal/infrastructure/storage/postgres/schema_repo"
	"sage/pkg/logger"
)

// App holds the connected pool and every domain service.
type App struct {
	Config Config
	Log    *logger.Logger

	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Idempotency *postgres.IdempotencyStore
	Metrics     *monitoring.Provider
	Definitions *cache.DefinitionCache
	JWT         *auth.JWTService

	Services v1.Services
}

// New connects to the database and wires the services. Close releases the pool.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &App{Config: cfg, Log: log, Pool: pool, TxManager: postgres.NewTxManager(pool)}

	var metrics domain.Metrics = domain.NopMetrics{}
	if cfg.MetricsEnabled {
		if a.Metrics, err = monitoring.New(monitoring.DefaultConfig("sage")); err != nil {
			pool.Close()
			return nil, err
		}
		if err := a.Metrics.ObservePool(pool); err != nil {
			log.Warnw("pool metrics unavailable", "error", err)
		}
		metrics = a.Metrics
	}

	codec, err := postgres.NewPayloadCodec(cfg.CompressThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Mail.Enabled() {
		notifier = mail.NewNotifier(cfg.Mail, log)
	} else {
		log.Info("SMTP_HOST not set, email notifications disabled")
	}

	txm := a.TxManager
	products := schema_repo.NewProductRepo(txm)
	fields := schema_repo.NewFieldRepo(txm)
	tables := schema_repo.NewTableInfoRepo(txm)
	store := dynamic_repo.NewStore(txm)
	expr := ingest.MustExpressions()

	schemaSvc := schema.NewService(schema.Config{
		Products:   products,
		Fields:     fields,
		Rules:      schema_repo.NewRuleRepo(txm),
		Tables:     tables,
		Uploads:    schema_repo.NewUploadedFileRepo(txm),
		TxManager:  txm,
		Expression: expr.Check,
	})
	a.Definitions = cache.NewDefinitionCache(schemaSvc, pool.Unwrap(), cfg.SchemaCacheTTL, metrics)
	evict := func(_ context.Context, p *schema.Product) error {
		a.Definitions.Invalidate(p.ID)
		return nil
	}
	schemaSvc.ProductHooks().On(domain.AfterUpdate, evict)
	schemaSvc.ProductHooks().On(domain.BeforeDelete, evict)
	materializer := materialize.NewService(materialize.Config{
		Products:  products,
		Fields:    fields,
		Tables:    tables,
		Executor:  store,
		TxManager: txm,
		Metrics:   metrics,
		Logger:    log,
	})
	catalogSvc := catalog.NewService(catalog_repo.NewCatalogRepo(txm), products, materializer, txm)
	alerts := notify.NewAlertService(catalog_repo.NewAlertRepo(txm))
	submissions := submission.NewService(catalog_repo.NewSubmissionRepo(txm, codec), alerts)

	a.Services = v1.Services{
		Schema:       schemaSvc,
		Materializer: materializer,
		Catalogs:     catalogSvc,
		Ingest: ingest.NewService(ingest.Config{
			Policy:      cfg.CoercionPolicy,
			Schema:      a.Definitions,
			Tables:      tables,
			Writer:      store,
			Catalogs:    catalogSvc,
			Submissions: submissions,
			Notifier:    notifier,
			Alerter:     alerts,
			Validator:   ingest.NewValidator(expr),
			TxManager:   txm,
			Metrics:     metrics,
		}),
		Reader:      reader.New(a.Definitions, tables, store).WithSnapshot(txm),
		Submissions: submissions,
		Alerts:      alerts,
		Homologation: homologation.NewService(homologation.ServiceConfig{
			Items:     homologation_repo.NewItemRepo(txm),
			Repo:      homologation_repo.NewHomologationRepo(txm),
			Configs:   homologation_repo.NewConfigRepo(txm),
			Products:  products,
			Notifier:  notifier,
			TxManager: txm,
			Metrics:   metrics,
			TopN:      cfg.MatchTopN,
		}),
	}
	a.Idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	a.JWT = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	return a, nil
}

// Migrate applies pending metadata migrations.
func (a *App) Migrate(ctx context.Context) (int, error) {
	return postgres.Migrate(ctx, a.TxManager)
}

// RouterConfig describes the HTTP API over the wired services.
func (a *App) RouterConfig() v1.RouterConfig {
	rc := v1.RouterConfig{
		Logger:         a.Log,
		Version:        a.Config.Version,
		DB:             a.Pool,
		JWTValidator:   a.JWT,
		APIKeys:        a.Services.Catalogs,
		Idempotency:    a.Idempotency,
		MaxUploadBytes: a.Config.MaxUploadBytes,
		Services:       a.Services,
	}
	if a.Metrics != nil {
		rc.Metrics = a.Metrics
		rc.MetricsHandler = a.Metrics.Handler()
	}
	return rc
}

// Close stops the definition listener, flushes metrics and releases the pool.
func (a *App) Close(ctx context.Context) {
	a.Definitions.Stop()
	if a.Metrics != nil {
		if err := a.Metrics.Shutdown(ctx); err != nil {
			a.Log.Warnw("metrics shutdown", "error", err)
		}
	}
	a.Pool.Close()
}
