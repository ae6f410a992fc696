package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"jobboard-backend/internal/auth"
	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/llm/gemini"
	"jobboard-backend/internal/llm/openai"
	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/resumes"
	"jobboard-backend/internal/services/health"
	sharedauth "jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/server"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/storage/kv"
	"jobboard-backend/internal/shared/storage/object"
	localstore "jobboard-backend/internal/shared/storage/object/local"
	s3store "jobboard-backend/internal/shared/storage/object/s3"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/users"
	"jobboard-backend/internal/vacancies"
	"jobboard-backend/internal/worker"
)

const (
	memoryCacheSize = 4096
	poolQueueFactor = 16
)

// App holds shared dependencies and the wired router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Files  object.Store
	Queue  queue.Queue
	Pool   *worker.Pool
	Issuer *sharedauth.Issuer
	Health *health.Service

	Users     *users.Service
	Auth      *auth.Service
	Vacancies *vacancies.Service
	Resumes   *resumes.Service
	Interview *interview.Service
}

type options struct {
	dbOptions db.Options
	evaluator llm.Evaluator
	queue     queue.Queue
	mailer    users.Mailer
	rateRules map[string]middleware.RateLimitRule
	noRouter  bool
}

// Option overrides a dependency, mostly for tests and the worker binary.
type Option func(*options)

// WithDBOptions sets the pool settings used when DATABASE_URL is present.
func WithDBOptions(o db.Options) Option {
	return func(opts *options) { opts.dbOptions = o }
}

// WithEvaluator replaces the provider chosen by LLM_PROVIDER.
func WithEvaluator(e llm.Evaluator) Option {
	return func(opts *options) { opts.evaluator = e }
}

// WithQueue replaces the queue backend chosen by QUEUE_BACKEND.
func WithQueue(q queue.Queue) Option {
	return func(opts *options) { opts.queue = q }
}

// WithMailer replaces the log mailer.
func WithMailer(m users.Mailer) Option {
	return func(opts *options) { opts.mailer = m }
}

// WithRateRules replaces the default rate limits. An empty map disables limiting.
func WithRateRules(rules map[string]middleware.RateLimitRule) Option {
	return func(opts *options) { opts.rateRules = rules }
}

// WithoutRouter skips HTTP wiring, for processes that only need services.
func WithoutRouter() Option {
	return func(opts *options) { opts.noRouter = true }
}

// Build connects storage, wires services and, unless disabled, the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	o := options{dbOptions: db.Defaults(db.ProfileAPI).FromEnv()}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	app := &App{Config: cfg, Health: health.NewService()}

	sqlDB, err := buildDB(ctx, cfg, o.dbOptions)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Health.Register("database", health.CheckFunc(sqlDB.PingContext))
	}

	rdb, err := buildRedis(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = rdb
	if rdb != nil {
		app.Health.Register("redis", health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	files, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Files = files

	evaluator := o.evaluator
	if evaluator == nil {
		evaluator, err = BuildEvaluator(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Queue = o.queue
	if app.Queue == nil && cfg.EvaluationMode == interview.ModeQueue {
		app.Queue, err = BuildQueue(ctx, cfg, rdb)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	buildServices(app, evaluator, o.mailer)

	if !o.noRouter {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:     cfg,
			Tokens:     app.Issuer,
			Principals: app.Users,
			Health:     app.Health,
			RateRules:  o.rateRules,
			Handlers: []server.RouteRegistrar{
				users.NewHandler(app.Users),
				auth.NewHandler(app.Auth, app.Resumes),
				googleService(cfg, app),
				vacancies.NewHandler(app.Vacancies),
				resumes.NewHandler(app.Resumes),
				interview.NewHandler(app.Interview),
			},
		})
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             cfg.Env,
		"database":        sqlDB != nil,
		"redis":           rdb != nil,
		"object_store":    cfg.ObjectStoreType,
		"llm_provider":    cfg.LLMProvider,
		"evaluation_mode": cfg.EvaluationMode,
	})
	return app, nil
}

// Close stops background workers and releases connections.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildServices(app *App, evaluator llm.Evaluator, mailer users.Mailer) {
	cfg := app.Config

	var userStore repo.Store[users.User] = repo.NewMemory(users.Table)
	var tokenStore repo.Store[users.RecoveryToken] = repo.NewMemory(users.TokenTable)
	vacancyStores := vacancies.NewMemoryStores()
	resumeStores := resumes.NewMemoryStores()
	chatStores := interview.NewMemoryStores()
	if app.DB != nil {
		userStore = repo.NewPG(app.DB, users.Table)
		tokenStore = repo.NewPG(app.DB, users.TokenTable)
		vacancyStores = vacancies.NewPGStores(app.DB)
		resumeStores = resumes.NewPGStores(app.DB)
		chatStores = interview.NewPGStores(app.DB)
	}

	cacheTTL := users.CacheTTL(cfg.AccessTokenTTL)
	var cache users.Cache = users.NewMemoryCache(memoryCacheSize, cacheTTL)
	if app.Redis != nil {
		cache = users.NewRedisCache(app.Redis, cacheTTL)
	}

	app.Issuer = sharedauth.NewIssuer(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	app.Users = users.NewService(userStore, tokenStore, cache, sharedauth.NewHasher(cfg.SecretKey))
	app.Users.FrontURL = cfg.FrontURL
	if cfg.RecoveryTokenTTL > 0 {
		app.Users.RecoveryTTL = cfg.RecoveryTokenTTL
	}
	if mailer != nil {
		app.Users.Mailer = mailer
	}
	app.Auth = auth.NewService(app.Users, app.Issuer)
	app.Vacancies = vacancies.NewService(vacancyStores)
	app.Resumes = resumes.NewService(resumeStores, app.Vacancies, app.Files)

	app.Interview = interview.NewService(chatStores, evaluator)
	app.Interview.SetEvaluationTimeout(cfg.EvaluationTimeout)
	inline := interview.InlineDispatcher{Evaluate: app.Interview.Evaluate}
	switch {
	case cfg.EvaluationMode == interview.ModeAsync:
		workers := cfg.EvaluationWorkers
		if workers <= 0 {
			workers = 1
		}
		app.Pool = worker.NewPool(workers, workers*poolQueueFactor, cfg.EvaluationTimeout)
		app.Pool.Start()
		app.Interview.SetDispatcher(interview.PoolDispatcher{Pool: app.Pool, Evaluate: app.Interview.Evaluate})
	case cfg.EvaluationMode == interview.ModeQueue && app.Queue != nil:
		app.Interview.SetDispatcher(interview.QueueDispatcher{Client: app.Queue, Fallback: inline})
	default:
		app.Interview.SetDispatcher(inline)
	}
}

func googleService(cfg config.Config, app *App) *auth.GoogleService {
	g := auth.NewGoogleService(auth.GoogleConfig{
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURL:   cfg.GoogleRedirectURL,
		UIRedirectURL: cfg.UIRedirectURL,
	}, app.Users, app.Issuer)
	if app.Redis != nil {
		g.States = auth.RedisStates{Client: app.Redis}
	}
	return g
}

// BuildEvaluator returns the configured provider wrapped with one retry, or
// the placeholder when LLM_PROVIDER is none.
func BuildEvaluator(ctx context.Context, cfg config.Config) (llm.Evaluator, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.EvaluationURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.EvaluationTimeout)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	case "gemini":
		client, err := gemini.New(ctx, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	default:
		return llm.Placeholder{}, nil
	}
}

// BuildQueue opens the evaluation queue selected by QUEUE_BACKEND.
func BuildQueue(ctx context.Context, cfg config.Config, rdb *redis.Client) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
	default:
		if rdb == nil {
			return nil, errors.New("QUEUE_BACKEND=redis requires REDIS_URL")
		}
		return queue.NewRedisQueue(rdb, cfg.QueueName), nil
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_fallback", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if config.IsDevLike(cfg.Env) {
		opts.ConnectAttempts = 1
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_fallback", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	if config.IsDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	client, err := kv.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.redis_fallback", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}
