package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scholarchat/config"
	"github.com/yoockh/scholarchat/internal/api/handlers"
	"github.com/yoockh/scholarchat/internal/api/middleware"
	"github.com/yoockh/scholarchat/internal/api/routes"
	"github.com/yoockh/scholarchat/internal/cache"
	"github.com/yoockh/scholarchat/internal/logger"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/embedding"
	"github.com/yoockh/scholarchat/internal/providers/llm"
	"github.com/yoockh/scholarchat/internal/providers/scholar"
	"github.com/yoockh/scholarchat/internal/ratelimit"
	mongorepo "github.com/yoockh/scholarchat/internal/repositories/mongo"
	pgrepo "github.com/yoockh/scholarchat/internal/repositories/postgres"
	"github.com/yoockh/scholarchat/internal/research"
	"github.com/yoockh/scholarchat/internal/services"
	"github.com/yoockh/scholarchat/internal/vectorindex"
	"github.com/yoockh/scholarchat/internal/workers"
)

var cli struct {
	Config  string `help:"Path to the YAML config file" default:"config.yaml" type:"path"`
	Port    string `help:"Listen port, overrides server.port"`
	Migrate bool   `help:"Run database migrations on startup" default:"true" negatable:""`
}

func main() {
	_ = godotenv.Load()
	_ = kong.Parse(&cli, kong.Description("Chat server with conversation memory and research augmentation."))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cli.Port != "" {
		cfg.Server.Port = cli.Port
	}

	log := logger.New(cfg.Server.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.AppConfig, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	db, err := config.InitPostgres(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	if cli.Migrate {
		if err := config.MigratePostgres(db); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	log.Info("PostgreSQL connected")

	// Redis (optional)
	var searchCache cache.Cache = cache.Nop{}
	rdb, err := config.InitRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		searchCache = cache.NewRedisCache(rdb, "scholarchat:")
		log.Info("Redis connected")
	}

	// MongoDB (optional)
	var (
		runs    services.RunRecorder = services.NopRunRecorder{}
		history services.RunHistory
	)
	mc, err := config.InitMongo(cfg.Mongo)
	if err != nil {
		return fmt.Errorf("mongo init: %w", err)
	}
	if mc != nil {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mc.Disconnect(dctx)
		}()
		mdb := mc.Database(cfg.Mongo.DB)
		if err := config.EnsureMongoIndexes(mdb); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		repo := mongorepo.NewChatRunRepo(mdb, time.Duration(cfg.Mongo.RunTTL)*time.Hour)
		runs, history = repo, repo
		log.Info("MongoDB connected")
	}

	// Providers
	chatLLM, err := newLLM(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm init: %w", err)
	}
	defer chatLLM.Close()

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding init: %w", err)
	}
	defer closeEmbedder()

	var index vectorindex.Index
	if embedder != nil {
		switch cfg.Embedding.Store {
		case "memory":
			index = vectorindex.NewMemory()
		default:
			index = vectorindex.NewPGVector(db)
		}
	}

	limiter := ratelimit.New(cfg.Scholar.RequestsPerSecond, ratelimit.WithLogger(log))
	scholarClient := scholar.NewClient(limiter,
		scholar.WithBaseURL(cfg.Scholar.BaseURL),
		scholar.WithAPIKey(cfg.Scholar.APIKey),
		scholar.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Scholar.TimeoutSecs) * time.Second}),
		scholar.WithCache(searchCache, cfg.ScholarCacheTTL()),
		scholar.WithLogger(log),
	)

	// Repos
	convRepo := pgrepo.NewConversationRepo(db)
	paperRepo := pgrepo.NewPaperRepo(db)

	// Services
	convSvc := services.NewConversationService(convRepo, embedder, index, log)
	ctxSvc := services.NewContextService(convSvc, services.ContextOptions{
		MaxTokens:        cfg.Context.MaxTokens,
		Candidates:       cfg.Context.Candidates,
		MaxConversations: cfg.Context.MaxConversations,
	}, log)
	augmenter := research.NewAugmenter(scholarClient, paperRepo, log)
	researchSvc := services.NewResearchService(scholarClient, chatLLM, paperRepo, log)
	paperSvc := services.NewPaperService(scholarClient, paperRepo, log)

	// Workers
	persist := &workers.PersistWorkerPool{
		Conversations: convSvc,
		Runs:          runs,
		NumWorkers:    cfg.Workers.PersistWorkers,
		QueueSize:     cfg.Workers.PersistQueue,
		SaveTimeout:   cfg.SaveTimeout(),
		Logger:        log,
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if err := persist.Start(workerCtx); err != nil {
		return fmt.Errorf("persist workers: %w", err)
	}

	chatSvc := services.NewChatService(services.ChatDeps{
		LLM:          chatLLM,
		Context:      ctxSvc,
		Research:     augmenter,
		Persist:      persist,
		Runs:         runs,
		SystemPrompt: cfg.Server.SystemPrompt,
		DefaultModel: cfg.LLM.Model,
		Logger:       log,
	})

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth: middleware.JWTOptions{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		},
		Chat:         handlers.NewChatHandler(chatSvc),
		Conversation: handlers.NewConversationHandler(convSvc),
		Research:     handlers.NewResearchHandler(researchSvc, paperSvc),
		Runs:         handlers.NewRunHandler(history),
		WS:           handlers.NewWSHandler(chatSvc, cfg.Server.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":         cfg.Server.Port,
			"llm":          cfg.LLM.Provider,
			"embedding":    cfg.Embedding.Provider,
			"vector_store": cfg.Embedding.Store,
			"scholar_gap":  limiter.MinInterval().String(),
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	// drain saves queued by replies that already finished
	persist.Stop()
	return nil
}

func newLLM(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "vertex":
		return llm.NewVertexGemini(ctx, cfg.ProjectID, cfg.Location, cfg.Model)
	case "openai":
		return llm.NewOpenAI(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return llm.NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// newEmbedder returns a nil provider when embeddings are disabled.
func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Provider, func(), error) {
	switch cfg.Provider {
	case "none":
		return nil, func() {}, nil
	case "openai":
		return embedding.NewOpenAI(cfg.APIKey, cfg.Model, models.EmbeddingDimensions), func() {}, nil
	case "gemini":
		g, err := embedding.NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
