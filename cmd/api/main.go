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
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/config"
	"github.com/noah-isme/examguard-api/internal/database"
	"github.com/noah-isme/examguard-api/internal/handler"
	"github.com/noah-isme/examguard-api/internal/middleware"
	"github.com/noah-isme/examguard-api/internal/repository"
	"github.com/noah-isme/examguard-api/internal/router"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/storage"
	cloud "github.com/noah-isme/examguard-api/pkg/cloudinary"
	"github.com/noah-isme/examguard-api/pkg/faceverify"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
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
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	files, err := buildFileStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure file storage")
	}

	verifier, err := buildVerifier(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure face verifier")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)

	events := service.NewExamEventService(redisClient, cfg.EventsChannel, natsConn, logger)
	events.Start(rootCtx)

	planCache := service.NewSeatingPlanCache(redisClient, cfg.SeatingCacheTTL, logger)
	planService := service.NewSeatingPlanService(store, planCache, events, logger)
	seatService := service.NewSeatAllocationService(store, planCache, events, logger)
	checkinService := service.NewCheckinService(store, files, verifier, events, cfg.UploadMaxMB, logger)
	violationService := service.NewViolationService(store, files, events, cfg.UploadMaxMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middlewareCfg := middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins}
	if cfg.AppEnv == "development" {
		middlewareCfg.AccessLog = os.Stdout
	}
	middleware.Register(app, middlewareCfg)
	router.Register(app, cfg, router.Dependencies{
		SeatingHandler:   handler.NewSeatingHandler(planService, seatService, validate, logger),
		CheckinHandler:   handler.NewCheckinHandler(checkinService, validate, middleware.RateLimit("checkins", cfg.CheckinRateLimit, time.Minute), logger),
		ViolationHandler: handler.NewViolationHandler(violationService, validate, logger),
		ExamEventHandler: handler.NewExamEventHandler(events, cfg.EventsKeepAlive, logger),
		HealthProbes:     healthProbes(db, redisClient, natsConn),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancelRoot, logger)
}

func buildFileStore(cfg config.Config, logger zerolog.Logger) (service.FileStore, error) {
	if cfg.StorageDriver == config.StorageCloudinary {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return storage.NewLocalFileStore(afero.NewOsFs(), cfg.StorageLocalDir, logger), nil
}

func buildVerifier(cfg config.Config, logger zerolog.Logger) (service.FaceVerifier, error) {
	if cfg.FaceVerifierURL == "" {
		logger.Warn().Bool("match", cfg.FaceVerifierStatic).Msg("face verifier url not set, using static verifier")
		return service.NewFaceVerifier(faceverify.NewStaticVerifier(cfg.FaceVerifierStatic)), nil
	}
	verifier, err := faceverify.NewHTTPVerifier(faceverify.HTTPConfig{
		URL:     cfg.FaceVerifierURL,
		Timeout: cfg.FaceVerifierTimeout,
		Retries: cfg.FaceVerifierRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return service.NewFaceVerifier(verifier), nil
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, cancelRoot context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
