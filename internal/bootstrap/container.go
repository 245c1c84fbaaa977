package bootstrap

import (
	"context"
	"log"
	"time"

	"art-curator-be/internal/config"
	"art-curator-be/internal/controller"
	"art-curator-be/internal/handler"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/repository/cache"
	"art-curator-be/internal/repository/contract"
	"art-curator-be/internal/repository/implementation"
	"art-curator-be/internal/repository/memory"
	"art-curator-be/internal/service"
	"art-curator-be/internal/websocket"
	"art-curator-be/pkg/database"
	"art-curator-be/pkg/imagesearch"
	"art-curator-be/pkg/llm/factory"

	pktNats "art-curator-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	SessionWsHandler  *handler.SessionWsHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	StateService    service.IQueryStateService
	SessionService  service.ISessionService
	PipelineService service.IPipelineService

	Logger logger.ILogger

	closers []func()
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c.Logger = sysLogger

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	rdb := connectRedis(ctx, cfg)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	// 4. Repositories
	var sessionRepo contract.SessionStateRepository
	if cfg.App.StateBackend == "redis" && rdb != nil {
		sessionRepo = cache.NewRedisSessionRepository(rdb, 24*time.Hour)
		log.Printf("[INFO] Using Query State backend: REDIS")
	} else {
		sessionRepo = memory.NewSessionRepository(24 * time.Hour)
		log.Printf("[INFO] Using Query State backend: MEMORY")
	}

	resultCache := newResultCache(ctx, cfg, rdb, sysLogger)

	// 5. External collaborators
	llmProvider, err := factory.NewLLMProvider(ctx, factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg),
		APIKey:   llmAPIKey(cfg),
		Timeout:  cfg.Ai.Timeout,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	resolver := imagesearch.NewRodResolver(imagesearch.RodConfig{
		DebuggerURL: cfg.Browser.DebuggerURL,
		Headless:    cfg.Browser.Headless,
		SearchURL:   cfg.Browser.SearchURL,
		Selector:    cfg.Browser.ImageSelector,
		Timeout:     cfg.Browser.Timeout,
	})
	c.closers = append(c.closers, func() { _ = resolver.Close() })

	// 6. WebSocket Hub
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(ctx)

	// 7. Services
	stateService := service.NewQueryStateService(sessionRepo, wsHub, sysLogger)
	pipelineService := service.NewPipelineService(
		stateService,
		llmProvider,
		resolver,
		resultCache,
		eventPublisher,
		service.PipelineOptions{
			CandidateCount:        cfg.Pipeline.CandidateCount,
			AnnotationConcurrency: cfg.Pipeline.AnnotationConcurrency,
			LLMTimeout:            cfg.Ai.Timeout,
			ImageTimeout:          cfg.Browser.Timeout,
			ResultCacheTTL:        cfg.Pipeline.ResultCacheTTL,
		},
		sysLogger,
	)
	publisherService := service.NewPublisherService(cfg.Pipeline.RunTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Pipeline.RunTopic, pipelineService, sysLogger)
	sessionService := service.NewSessionService(stateService, resultCache, publisherService, sysLogger)

	// 8. Controllers
	c.SessionController = controller.NewSessionController(sessionService, cfg.App.JwtSecret, sysLogger)
	c.SessionWsHandler = handler.NewSessionWsHandler(stateService, sessionService, cfg.App.JwtSecret, wsLogger)
	c.ConsumerService = consumerService
	c.WebSocketHub = wsHub
	c.StateService = stateService
	c.SessionService = sessionService
	c.PipelineService = pipelineService

	return c
}

// Close releases infrastructure in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// connectRedis returns nil when redis is unreachable; callers fall back to
// in-process backends.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.App.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	// Honor per-call deadlines; the hub relies on them while holding a session lock.
	opt.ContextTimeoutEnabled = true
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (running single-instance)", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newResultCache(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.ILogger) contract.ResultCacheRepository {
	switch cfg.Pipeline.ResultCacheBackend {
	case "redis":
		if rdb != nil {
			log.Info("Bootstrap", "Using Result Cache backend: REDIS", nil)
			return cache.NewRedisResultCacheRepository(rdb)
		}
	case "postgres":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err == nil {
			repo := implementation.NewResultCacheRepository(db)
			go purgeExpired(ctx, repo, log)
			log.Info("Bootstrap", "Using Result Cache backend: POSTGRES", nil)
			return repo
		}
		log.Warn("Bootstrap", "Unable to connect to GORM DB, falling back to memory", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Bootstrap", "Using Result Cache backend: MEMORY", nil)
	return memory.NewResultCacheRepository(cfg.Pipeline.ResultCacheSize, cfg.Pipeline.ResultCacheTTL)
}

func purgeExpired(ctx context.Context, repo *implementation.ResultCacheRepositoryImpl, log logger.ILogger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Warn("Bootstrap", "Result cache purge failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if n > 0 {
				log.Info("Bootstrap", "Purged expired result cache entries", map[string]interface{}{"rows": n})
			}
		}
	}
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "huggingface" {
		return cfg.Ai.HuggingFaceBaseURL
	}
	return cfg.Ai.OllamaBaseURL
}

func llmAPIKey(cfg *config.Config) string {
	switch cfg.Ai.LLMProvider {
	case "huggingface":
		return cfg.Keys.HuggingFace
	case "gemini":
		return cfg.Keys.GoogleGemini
	}
	return ""
}
