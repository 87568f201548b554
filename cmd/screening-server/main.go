// cmd/screening-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"screening-engine/internal/agent"
	"screening-engine/internal/common/config"
	"screening-engine/internal/common/database"
	commonhttp "screening-engine/internal/common/http"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/common/observability"
	"screening-engine/internal/credentials"
	"screening-engine/internal/ingest"
	"screening-engine/internal/llm"
	"screening-engine/internal/orchestrator"
	"screening-engine/internal/provider"
	"screening-engine/internal/router"
	"screening-engine/internal/scoring"
	"screening-engine/internal/server"
	"screening-engine/internal/store"
	"screening-engine/internal/vault"
	"screening-engine/internal/worker"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting screening server...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("screening-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Identity Vault ---
	identityVault, err := vault.New(cfg.Security.EncryptionKey)
	if err != nil {
		zapLog.Fatal("vault initialization failed", zap.Error(err))
	}

	// --- Repositories ---
	jobs := store.NewJobRepository(pg.DB)
	candidates := store.NewCandidateRepository(pg.DB)
	conversations := store.NewConversationRepository(pg.DB)
	apiConfigs := store.NewAPIConfigRepository(pg.DB)
	codes := store.NewCodeStore(redis.Client)

	// --- Domain Components ---
	inboundRouter := router.New(codes, candidates, identityVault)

	credentialResolver := credentials.NewResolver(apiConfigs, identityVault, credentials.Defaults{
		TwilioAccountSID:     cfg.Provider.AccountSID,
		TwilioAuthToken:      cfg.Provider.AuthToken,
		TwilioWhatsAppNumber: cfg.Provider.WhatsAppNumber,
		GenAIAPIKey:          cfg.APIs.GenAI.APIKey,
		AWSRegion:            cfg.Storage.AWS.Region,
		AWSAccessKeyID:       cfg.Storage.AWS.AccessKeyID,
		AWSSecretAccessKey:   cfg.Storage.AWS.SecretAccessKey,
		S3Bucket:             cfg.Storage.AWS.S3Bucket,
	})

	generators := llm.NewFactory(cfg.APIs.GenAI.Model)

	dialogue := agent.New()

	mediaClient := commonhttp.NewClient(config.GetDuration(cfg.Provider.MediaTimeout))
	pipeline := ingest.NewPipeline(mediaClient, log)

	scorer := scoring.NewEngine(
		cfg.Scoring.MaxConcurrentEvaluations,
		config.GetDuration(cfg.Scoring.Timeout),
		log,
	)

	sendClient := commonhttp.NewClient(config.GetDuration(cfg.Provider.SendTimeout))
	sender := provider.NewClient(cfg.Provider.BaseURL, sendClient)

	processor := orchestrator.New(orchestrator.Config{
		Jobs:          jobs,
		Candidates:    candidates,
		Conversations: conversations,
		Resolver:      inboundRouter,
		Dedupe:        codes,
		Cipher:        identityVault,
		Dialogue:      dialogue,
		Scorer:        scorer,
		Ingestor:      pipeline,
		Sender:        sender,
		Credentials:   credentialResolver,
		Generators:    orchestrator.FactorySource{Factory: generators},
		Logger:        log,
	})

	// --- Worker Pool ---
	pool := worker.NewPool(cfg.Server.WorkerPoolSize, cfg.Server.QueueSize, log)
	poolCtx, poolCancel := context.WithCancel(ctx)
	defer poolCancel()
	pool.Start(poolCtx)

	// --- HTTP Server ---
	srv := server.New(server.Config{
		Server:        cfg.Server,
		Processor:     processor,
		Pool:          pool,
		Postgres:      pg,
		Redis:         redis,
		Observability: obs,
		Logger:        log,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("worker pool shutdown failed", zap.Error(err))
	}

	zapLog.Info("Screening server stopped gracefully")
}
