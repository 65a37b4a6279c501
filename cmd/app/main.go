package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "reward-giveaway-backend/docs"
	"reward-giveaway-backend/internal/common/cache"
	"reward-giveaway-backend/internal/common/config"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/common/middleware"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/draw"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/features/payment"
	"reward-giveaway-backend/internal/features/permission"
	"reward-giveaway-backend/internal/features/registration"
	httpdelivery "reward-giveaway-backend/internal/http"
	"reward-giveaway-backend/internal/platform/redis"
	"reward-giveaway-backend/internal/platform/telegram"
	"reward-giveaway-backend/internal/platform/trading"
	"reward-giveaway-backend/internal/workers"
)

// @title           Reward Giveaway API
// @version         1.0
// @description     API server for periodic reward giveaways. All endpoints require init_data authentication.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

// @tag.name giveaways
// @tag.description Registration, statistics and winner listings

// @tag.name users
// @tag.description Per-user participation statistics

// @tag.name admin
// @tag.description Draw execution and payout confirmation

func main() {
	cfg := config.Load()

	logger.Init("reward-giveaway-backend", cfg.Debug)
	log := logger.With("main")

	log.Info().Bool("debug", cfg.Debug).Msg("Starting reward giveaway backend")

	types := models.NewTypeTable(
		cfg.Giveaways.DailyPrize,
		cfg.Giveaways.WeeklyPrize,
		cfg.Giveaways.MonthlyPrize,
		cfg.Trading.MinBalance,
	)

	store, err := storage.Open(cfg.Storage.DataDir, types)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.DataDir).Msg("Failed to open record store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redis.Open(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewCacheService(redisClient)

	locks := concurrency.NewManager(concurrency.Options{
		AcquireTimeout: cfg.Locks.AcquireTimeout,
		StaleAfter:     cfg.Locks.StaleAfter,
		DebounceWindow: cfg.Locks.DebounceWindow,
	})
	defer locks.Close()

	telegramClient := telegram.NewClient(cfg.Telegram.BotToken)
	tradingClient := trading.NewClient(cfg.Trading.BaseURL, cfg.Trading.MinBalance)
	gate := permission.NewStaticGate(cfg.Telegram.AdminIDs, nil, cfg.ReferenceTimezone)

	registrationSvc := registration.NewService(
		locks, store, tradingClient, telegramClient, types,
		cfg.Telegram.CommunityChat, cfg.Registration.MaxAttempts,
	)
	drawSvc := draw.NewService(locks, store, gate, types, telegramClient, cfg.Telegram.OpsChannel)
	paymentSvc := payment.NewService(
		locks, store, gate, cacheService, telegramClient,
		cfg.Telegram.AnnounceChannel, cfg.Telegram.OpsChannel,
	)

	log.Info().Msg("Services initialized")

	eventWorker := workers.NewEventStreamWorker(
		redisClient, registrationSvc, paymentSvc, drawSvc,
		cfg.Redis.EventStream, cfg.Redis.ConsumerGroup, cfg.Redis.ConsumerName,
	)
	cleanupWorker := workers.NewCleanupWorker(locks, cfg.Locks.CleanupInterval, cfg.Locks.EntryMaxAge)

	go eventWorker.Start(ctx)
	go cleanupWorker.Start(ctx)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(logger.With("recovery")))
	router.Use(middleware.RequestLogger(logger.With("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	router.Use(cors.New(corsConfig))

	handler := httpdelivery.NewHandler(
		registrationSvc, paymentSvc, drawSvc, store, cacheService, locks, gate, types, cfg.Cache.StatsTTL,
	)
	handler.RegisterRoutes(router.Group("/api/v1"), cfg.Telegram.BotToken)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	setupProbes(router, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func setupProbes(router *gin.Engine, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "reward-giveaway-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Healthy(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "reward-giveaway-backend",
		})
	})
}
