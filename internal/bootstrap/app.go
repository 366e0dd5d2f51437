package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"assessment-backend/internal/analysis"
	"assessment-backend/internal/cases"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/llm"
	anthropicllm "assessment-backend/internal/llm/anthropic"
	"assessment-backend/internal/llm/httpservice"
	openaillm "assessment-backend/internal/llm/openai"
	"assessment-backend/internal/lookup"
	"assessment-backend/internal/queue"
	"assessment-backend/internal/services/health"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/server"
	"assessment-backend/internal/shared/storage/db"
	"assessment-backend/internal/shared/storage/object"
	localstore "assessment-backend/internal/shared/storage/object/local"
	miniostore "assessment-backend/internal/shared/storage/object/minio"
	s3store "assessment-backend/internal/shared/storage/object/s3"
	"assessment-backend/internal/shared/telemetry"
)

const analysisServiceTimeout = 3 * time.Minute

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Redis     *goredis.Client
	Store     object.ObjectStore
	Queue     queue.Client
	Catalog   *catalog.Catalog
	Lookups   *lookup.Registry
	Repo      cases.Repo
	Processor *cases.Processor
	Service   *cases.Service
	Handler   *cases.Handler
	Health    *health.Service
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Store:   store,
		Queue:   queueClient,
		Catalog: cat,
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Health = buildHealth(app)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   app.Config,
		Handlers: []server.RouteRegistrar{app.Handler},
		Health:   app.Health,
	})

	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			Region:    cfg.AWSRegion,
			Bucket:    cfg.MinioBucket,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.CaseQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.CaseQueueURL, cfg.AWSRegion)
}

func buildCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if strings.TrimSpace(cfg.ModuleCatalogPath) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.ModuleCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load module catalog: %w", err)
	}
	return cat, nil
}

// BuildLLM returns the analysis client selected by ANALYSIS_PROVIDER.
func BuildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.AnalysisProvider {
	case "openai":
		return openaillm.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "anthropic":
		return anthropicllm.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel)
	case "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		if strings.TrimSpace(cfg.AnalysisServiceURL) == "" {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.analysis_placeholder", map[string]any{"reason": "ANALYSIS_SERVICE_URL empty"})
				return llm.PlaceholderClient{}, nil
			}
			return nil, errors.New("ANALYSIS_SERVICE_URL is required")
		}
		return httpservice.NewClient(cfg.AnalysisServiceURL, cfg.AnalysisServiceToken, analysisServiceTimeout)
	}
}

func buildServices(ctx context.Context, app *App) error {
	var repo cases.Repo
	if app.DB != nil {
		repo = &cases.PGRepo{DB: app.DB}
	} else {
		repo = cases.NewMemoryRepo()
	}

	client, err := BuildLLM(app.Config)
	if err != nil {
		return err
	}

	registry := lookup.NewRegistry(app.Catalog)
	if dir := strings.TrimSpace(app.Config.LookupImportDir); dir != "" {
		n, err := registry.LoadDir(dir)
		if err != nil {
			return fmt.Errorf("load lookup tables: %w", err)
		}
		telemetry.Info("bootstrap.lookups_loaded", map[string]any{"dir": dir, "tables": n})
	}

	processor := cases.NewProcessor(repo, app.Store, analysis.NewInvoker(client))
	processor.Stage = extract.NewStage(app.Config.ExtractMinChars)
	processor.Lookups = registry

	if url := strings.TrimSpace(app.Config.RedisURL); url != "" {
		rdb, err := cases.NewRedisClient(ctx, url)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return err
			}
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"err": err})
		} else {
			app.Redis = rdb
			processor.Lease = cases.NewRedisLease(rdb, 0)
		}
	}

	svc := &cases.Service{
		Repo:      repo,
		Store:     app.Store,
		Catalog:   app.Catalog,
		Processor: processor,
		Queue:     app.Queue,
	}

	app.Repo = repo
	app.Lookups = registry
	app.Processor = processor
	app.Service = svc
	app.Handler = cases.NewHandler(svc, &cases.Watcher{Repo: repo, Interval: app.Config.WatchInterval})

	if app.Handler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func buildHealth(app *App) *health.Service {
	checks := health.NewService()
	if app.DB != nil {
		checks.Add("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		rdb := app.Redis
		checks.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return checks
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
