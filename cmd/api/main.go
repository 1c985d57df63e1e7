package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/config"
	"github.com/noah-isme/gema-program-api/internal/database"
	"github.com/noah-isme/gema-program-api/internal/handler"
	"github.com/noah-isme/gema-program-api/internal/middleware"
	"github.com/noah-isme/gema-program-api/internal/repository"
	"github.com/noah-isme/gema-program-api/internal/router"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "gema-program-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
		SlowQuery:       cfg.DatabaseSlowQuery,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled; tracking cache and cross-node notifications are off")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	var evaluator ai.Evaluator
	if cfg.AIEnabled() {
		openAI, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			BaseURL:   cfg.OpenAIBaseURL,
			MaxTokens: cfg.OpenAIMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure ai evaluator")
		}
		evaluator = openAI
	} else {
		logger.Warn().Msg("openai api key missing; ai evaluation endpoints will report unavailable")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	programRepo := repository.NewProgramRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	transactions := repository.NewGormTransactionScope(db)

	access := service.NewAccessPolicy(programRepo)
	trackingService := service.NewTrackingService(programRepo, submissionRepo, evaluationRepo, access, redisClient, cfg.TrackingCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationChannel, natsConn, logger)
	rubricService := service.NewRubricService(rubricRepo, programRepo, transactions, access, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, programRepo, transactions, access, trackingService, validate, logger)
	evaluationService := service.NewEvaluationService(service.EvaluationDependencies{
		Evaluations:   evaluationRepo,
		Submissions:   submissionRepo,
		Program:       programRepo,
		Transactions:  transactions,
		Rubrics:       rubricService,
		Notifications: notificationService,
		Tracking:      trackingService,
		Access:        access,
		Evaluator:     evaluator,
		Validator:     validate,
		Logger:        logger,
	})
	activityService := service.NewActivityService(activityRepo, logger)
	seedService := service.NewSeedService(transactions, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, logger),
		EvaluationHandler:   handler.NewEvaluationHandler(evaluationService, middleware.RateLimit("ai-evaluation", cfg.AIRateLimit, cfg.AIRateWindow), logger),
		RubricHandler:       handler.NewRubricHandler(rubricService, logger),
		TrackingHandler:     handler.NewTrackingHandler(trackingService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		TenantMiddleware:    middleware.TenantContext(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
