package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/provider"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/contact"
	"triage_server/core/service/ingest"
	"triage_server/core/service/report"
	"triage_server/core/service/schedule"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/apperr"
	"triage_server/pkg/cache"
	"triage_server/pkg/logger"
	"triage_server/pkg/retry"
	"triage_server/pkg/security"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	OwnerRepo       out.OwnerRepository
	ContactRepo     out.ContactRepository
	MessageRepo     out.MessageRepository
	ThreadRepo      out.ThreadRepository
	ParticipantRepo out.ParticipantRepository
	EmbeddingRepo   out.EmbeddingRepository
	TodoRepo        out.TodoRepository
	EventRepo       out.EventRepository
	AgentErrorRepo  out.AgentErrorRepository
	DecisionLog     out.DecisionLog

	// Providers
	Mailbox  out.MailboxProvider
	Calendar out.CalendarProvider

	// Cache
	Cache    out.Cache
	RunLease out.RunLease

	// Agent
	LLMClient *llm.Client

	// Services
	ContactResolver *contact.Resolver
	ThreadResolver  *triage.ThreadResolver
	Refresher       *triage.SummaryRefresher
	Scheduler       *schedule.Scheduler
	Actions         *schedule.Actions
	Pipeline        *ingest.Pipeline
	Runner          *ingest.Runner
	BriefBuilder    *report.BriefBuilder
	Signer          *security.Signer
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, nil, apperr.ConfigError("DATABASE_URL is required")
	}
	if cfg.ActionSecret == "" {
		return nil, nil, apperr.ConfigError("ACTION_LINK_SECRET is required")
	}

	// PostgreSQL
	pool, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	deps.DB = pool
	cleanups = append(cleanups, func() { pool.Close() })

	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect postgres (sqlx): %w", err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	// MongoDB (decision log)
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.WithError(err).Warn("MongoDB disconnect failed")
		}
	})

	// Repositories
	deps.OwnerRepo = persistence.NewOwnerAdapter(sqlDB)
	deps.ContactRepo = persistence.NewContactAdapter(sqlDB)
	deps.MessageRepo = persistence.NewMessageAdapter(sqlDB)
	deps.ThreadRepo = persistence.NewThreadAdapter(sqlDB)
	deps.ParticipantRepo = persistence.NewParticipantAdapter(sqlDB)
	deps.EmbeddingRepo = persistence.NewEmbeddingAdapter(pool)
	deps.TodoRepo = persistence.NewTodoAdapter(sqlDB)
	deps.EventRepo = persistence.NewEventAdapter(sqlDB)
	deps.AgentErrorRepo = persistence.NewAgentErrorAdapter(sqlDB)

	mongoDB := mongoClient.Database(cfg.MongoDBName)
	decisionLog := mongodb.NewDecisionLogAdapter(mongoDB)
	if err := decisionLog.EnsureIndexes(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to ensure decision log indexes")
	}
	deps.DecisionLog = decisionLog

	// Cache and run lease
	redisCache := cache.NewRedisCache(redisClient)
	deps.Cache = redisCache
	deps.RunLease = cache.NewRedisRunLease(redisCache)

	// Google providers
	googleCfg := &provider.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}
	deps.Mailbox = provider.NewGmailAdapter(googleCfg)
	deps.Calendar = provider.NewCalendarAdapter(googleCfg)

	// LLM client
	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxTokens:      cfg.LLMMaxTokens,
		Temperature:    cfg.LLMTemperature,
		MinEmbedLen:    cfg.MinEmbedTextLen,
	})

	// Services
	deps.Signer = security.NewSigner(cfg.ActionSecret)
	deps.ContactResolver = contact.NewResolver(deps.ContactRepo)

	spamFilter := triage.NewSpamFilter()
	deps.ThreadResolver = triage.NewThreadResolver(
		deps.ThreadRepo,
		deps.ParticipantRepo,
		deps.EmbeddingRepo,
		deps.DecisionLog,
		spamFilter,
		cfg.SimilarityThreshold,
		nil,
	)
	deps.Refresher = triage.NewSummaryRefresher(deps.LLMClient, deps.ThreadRepo, deps.MessageRepo, cfg.SummaryMaxChars)

	deps.Scheduler = schedule.NewScheduler(
		deps.Calendar,
		deps.EventRepo,
		deps.TodoRepo,
		schedule.Config{
			BusinessHourStart: cfg.BusinessHourStart,
			BusinessHourEnd:   cfg.BusinessHourEnd,
			SlotSearchDays:    cfg.SlotSearchDays,
			AlternativeSlots:  cfg.AlternativeSlots,
		},
		nil,
	)
	deps.Actions = schedule.NewActions(deps.TodoRepo, deps.EventRepo, deps.OwnerRepo, deps.Calendar)

	deps.Pipeline = ingest.NewPipeline(
		deps.Mailbox,
		deps.MessageRepo,
		deps.ThreadRepo,
		deps.AgentErrorRepo,
		deps.ContactResolver,
		deps.LLMClient,
		deps.LLMClient,
		deps.ThreadResolver,
		deps.Refresher,
		deps.Scheduler,
		ingest.PipelineConfig{
			MaxMessagesPerRun: cfg.MaxMessagesPerRun,
			RetryPolicy: retry.Policy{
				MaxRetries:  cfg.RetryMax,
				BaseDelay:   cfg.RetryBaseDelay,
				IsRetryable: apperr.IsTransient,
			},
		},
		nil,
	)
	deps.Runner = ingest.NewRunner(deps.OwnerRepo, deps.RunLease, deps.Pipeline, cfg.RunLeaseTTL)

	deps.BriefBuilder = report.NewBriefBuilder(
		deps.ThreadRepo,
		deps.TodoRepo,
		deps.EventRepo,
		deps.Mailbox,
		deps.Signer,
		cfg.ActionBaseURL,
		nil,
	)

	logger.Info("Dependencies initialized")
	return deps, cleanup, nil
}
