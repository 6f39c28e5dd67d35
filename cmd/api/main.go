package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/config"
	"github.com/noah-isme/gema-proposal-api/internal/database"
	"github.com/noah-isme/gema-proposal-api/internal/handler"
	"github.com/noah-isme/gema-proposal-api/internal/middleware"
	"github.com/noah-isme/gema-proposal-api/internal/models"
	"github.com/noah-isme/gema-proposal-api/internal/provider"
	"github.com/noah-isme/gema-proposal-api/internal/repository"
	"github.com/noah-isme/gema-proposal-api/internal/router"
	"github.com/noah-isme/gema-proposal-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Proposal{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled: fingerprint cache and redis decision events are off")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	fastCascade, err := provider.NewCascade("fast", cfg.AI, cfg.AI.ProviderOrder, logger)
	if err != nil {
		log.Fatalf("failed to build provider cascade: %v", err)
	}
	judgmentCascade, err := provider.NewCascade("judgment", cfg.AI, cfg.AI.JudgmentOrder, logger)
	if err != nil {
		log.Fatalf("failed to build judgment cascade: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	proposalRepo := repository.NewProposalRepository(db)

	semanticService := service.NewSemanticService(provider.NewSimilarityScorer(cfg.Similarity), cfg.Similarity.Timeout, logger)
	fingerprintService := service.NewFingerprintService(fastCascade, redisClient, cfg.FingerprintCacheTTL, logger)
	originalityService := service.NewOriginalityService(judgmentCascade, fingerprintService, semanticService, service.Thresholds{
		AutoBlockSemantic: cfg.Plagiarism.AutoBlockSemantic,
		AutoBlockLexical:  cfg.Plagiarism.AutoBlockLexical,
		WarnSemantic:      cfg.Plagiarism.WarnSemantic,
		WarnLexical:       cfg.Plagiarism.WarnLexical,
		TopK:              cfg.Plagiarism.TopK,
		AbstractLimit:     cfg.Plagiarism.AbstractLimit,
	}, logger)
	publisher := service.NewDecisionPublisher(redisClient, natsConn, cfg.EventChannel)
	proposalService := service.NewProposalService(proposalRepo, originalityService, fingerprintService, publisher, validate, 0, logger)
	assistantService := service.NewAssistantService(fastCascade, judgmentCascade, validate, logger)

	proposalHandler := handler.NewProposalHandler(proposalService, logger)
	assistantHandler := handler.NewAssistantHandler(assistantService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		// Evaluations wait on remote providers with per-call timeouts of their own.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	})

	deps := router.Dependencies{
		ProposalHandler:   proposalHandler,
		AssistantHandler:  assistantHandler,
		EvaluateRateLimit: middleware.RateLimit("evaluate", cfg.RateLimitMax, cfg.RateLimitWindow),
	}
	if cfg.ServiceTokenSecret != "" {
		deps.ServiceTokenMiddleware = middleware.ServiceToken(cfg.ServiceTokenSecret)
	} else {
		logger.Warn().Msg("service token secret not set: /api/v1 is unauthenticated")
	}

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, deps)

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Interface("provider_order", fastCascade.Providers()).
		Interface("judgment_order", judgmentCascade.Providers()).
		Str("similarity", cfg.Similarity.Provider).
		Msg("starting proposal api")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
