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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "inphrone-backend/docs"
	"inphrone-backend/internal/common/cache"
	"inphrone-backend/internal/common/config"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/common/metrics"
	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	analyticsHTTP "inphrone-backend/internal/features/analytics/delivery/http"
	analyticsService "inphrone-backend/internal/features/analytics/service"
	couponHTTP "inphrone-backend/internal/features/coupon/delivery/http"
	couponRepo "inphrone-backend/internal/features/coupon/repository/postgres"
	couponService "inphrone-backend/internal/features/coupon/service"
	inphrosyncHTTP "inphrone-backend/internal/features/inphrosync/delivery/http"
	inphrosyncRepo "inphrone-backend/internal/features/inphrosync/repository/postgres"
	inphrosyncService "inphrone-backend/internal/features/inphrosync/service"
	notificationHTTP "inphrone-backend/internal/features/notification/delivery/http"
	"inphrone-backend/internal/features/notification/email"
	"inphrone-backend/internal/features/notification/preferences"
	"inphrone-backend/internal/features/notification/queue"
	notificationRepo "inphrone-backend/internal/features/notification/repository/postgres"
	notificationService "inphrone-backend/internal/features/notification/service"
	opinionHTTP "inphrone-backend/internal/features/opinion/delivery/http"
	opinionRepo "inphrone-backend/internal/features/opinion/repository/postgres"
	opinionService "inphrone-backend/internal/features/opinion/service"
	streakHTTP "inphrone-backend/internal/features/streak/delivery/http"
	streakRepo "inphrone-backend/internal/features/streak/repository/postgres"
	streakService "inphrone-backend/internal/features/streak/service"
	userHTTP "inphrone-backend/internal/features/user/delivery/http"
	userRepo "inphrone-backend/internal/features/user/repository/postgres"
	userCache "inphrone-backend/internal/features/user/repository/redis"
	userService "inphrone-backend/internal/features/user/service"
	yourturnHTTP "inphrone-backend/internal/features/yourturn/delivery/http"
	yourturnRepo "inphrone-backend/internal/features/yourturn/repository/postgres"
	yourturnService "inphrone-backend/internal/features/yourturn/service"
	"inphrone-backend/internal/platform/postgres"
	"inphrone-backend/internal/platform/realtime"
	"inphrone-backend/internal/platform/redis"
	"inphrone-backend/internal/platform/telegram"
	"inphrone-backend/internal/workers"
)

const (
	profileCacheTTL = 5 * time.Minute
	poolStatsEvery  = 15 * time.Second
)

// @title           Inphrone API
// @version         1.0
// @description     Audience opinion platform backend. Endpoints authenticate with Telegram Mini App init_data.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

// @tag.name users
// @tag.description Profiles and onboarding

// @tag.name yourturn
// @tag.description Daily slot race, winner questions and votes

// @tag.name inphrosync
// @tag.description Daily audience questions with aggregated results

// @tag.name opinions
// @tag.description Audience opinions and upvotes

// @tag.name coupons
// @tag.description Reward coupons

// @tag.name streaks
// @tag.description Activity streaks and badges

// @tag.name notifications
// @tag.description Push subscriptions and prompt state

// @tag.name admin
// @tag.description Moderation and operations

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("inphrone-backend", cfg.Debug)
	logger.Info().Str("version", "1.0.0").Bool("debug", cfg.Debug).Msg("Starting Inphrone backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgresClient.ApplySchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	redisClient, err := redis.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	if err := validation.Register(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register validators")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	db := postgresClient.GetDB()
	cacheService := cache.NewCacheService(redisClient)
	feed := realtime.NewFeed(redisClient.Client)
	emailQueue := queue.NewQueue(redisClient, cfg.Notifications.Stream)

	emailClient, err := email.NewClient(cfg, email.WithMetrics(m))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load email templates")
	}

	// Repositories
	users := userRepo.NewPostgresRepository(db)
	slots := yourturnRepo.NewPostgresRepository(db)
	streaks := streakRepo.NewPostgresRepository(db)
	syncQuestions := inphrosyncRepo.NewPostgresRepository(db)
	opinions := opinionRepo.NewPostgresRepository(db)
	coupons := couponRepo.NewPostgresRepository(db)
	pushSubs := notificationRepo.NewPostgresRepository(db)

	// Services
	userSvc := userService.NewUserService(users, userCache.NewProfileCache(redisClient, profileCacheTTL), emailQueue)
	var yourturnOpts []yourturnService.Option
	if cfg.Telegram.NotifyWinners {
		bot := telegram.NewClient(cfg.Telegram.BotToken, cfg.Email.AppURL, telegram.WithBaseURL(cfg.Telegram.APIURL))
		yourturnOpts = append(yourturnOpts, yourturnService.WithWinnerNotifier(bot))
	}
	yourturnSvc, err := yourturnService.NewService(slots, feed, m, cfg.YourTurn, yourturnOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure Your Turn")
	}
	loc := cfg.YourTurn.Location()
	streakSvc := streakService.NewService(streaks, userSvc, emailQueue, loc)
	syncSvc := inphrosyncService.NewService(syncQuestions, cacheService, streakSvc, loc)
	opinionSvc := opinionService.NewService(opinions, streakSvc, userSvc, emailQueue)
	couponSvc := couponService.NewService(coupons)
	notificationSvc := notificationService.NewService(emailClient, emailQueue, users, pushSubs,
		preferences.NewRedisPreferences(redisClient))
	analyticsSvc := analyticsService.NewService(analyticsService.Sources{
		Users:         users.Count,
		ActiveToday:   streakSvc.CountActiveToday,
		Opinions:      opinionSvc.Count,
		SyncResponses: syncSvc.CountResponses,
		CouponClaims:  couponSvc.CountClaims,
		Slots:         yourturnSvc,
	}, cacheService)

	// Background workers
	scheduler := yourturnService.NewScheduler(yourturnSvc, cfg.YourTurn.SchedulerInterval)
	scheduler.Start()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	notificationWorker := workers.NewNotificationWorker(redisClient, emailClient,
		cfg.Notifications.Stream, cfg.Notifications.Group, cfg.Notifications.Consumer)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		notificationWorker.Start(workerCtx)
	}()
	go recordPoolStats(workerCtx, postgresClient, m)

	// Router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.HandleErrors())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(m))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", middleware.InitDataHeader, "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	setupProbes(router, postgresClient, redisClient)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	if cfg.Debug {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramInitData(cfg.Telegram.BotToken, cfg.Telegram.InitDataTTL))
	v1.Use(middleware.AutoCreateUser(userSvc))

	onboarded := middleware.RequireOnboarded()
	adminOnly := middleware.RequireAdmin(cfg)
	isModerator := func(c *gin.Context) bool { return middleware.IsAdmin(c, cfg) }

	userHTTP.NewUserHandler(userSvc).RegisterRoutes(v1, adminOnly)
	yourturnHTTP.NewYourTurnHandler(yourturnSvc).RegisterRoutes(v1, onboarded, adminOnly)
	streakHTTP.NewStreakHandler(streakSvc).RegisterRoutes(v1)
	inphrosyncHTTP.NewInphroSyncHandler(syncSvc).RegisterRoutes(v1, onboarded, adminOnly)
	opinionHTTP.NewOpinionHandler(opinionSvc, isModerator).RegisterRoutes(v1, onboarded, adminOnly)
	couponHTTP.NewCouponHandler(couponSvc).RegisterRoutes(v1, onboarded, adminOnly)
	notificationHTTP.NewNotificationHandler(notificationSvc).RegisterRoutes(v1, onboarded, adminOnly)
	analyticsHTTP.NewAnalyticsHandler(analyticsSvc).RegisterRoutes(v1, adminOnly)

	// No WriteTimeout: slot observers hold their stream open
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	scheduler.Stop()
	stopWorkers()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Notification worker did not stop in time")
	}

	logger.Info().Msg("Server exited")
}

func setupProbes(router *gin.Engine, postgresClient *postgres.Client, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "inphrone-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.HealthCheck(ctx); err != nil {
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
			"service":   "inphrone-backend",
		})
	})
}

func recordPoolStats(ctx context.Context, client *postgres.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(poolStatsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RecordDBPoolStats(client.Stats())
		case <-ctx.Done():
			return
		}
	}
}
