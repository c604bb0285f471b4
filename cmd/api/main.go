package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dearfuture/capsule-api/api/swagger"
	"github.com/dearfuture/capsule-api/internal/handler"
	"github.com/dearfuture/capsule-api/internal/middleware"
	"github.com/dearfuture/capsule-api/internal/repository"
	"github.com/dearfuture/capsule-api/internal/service"
	"github.com/dearfuture/capsule-api/pkg/cache"
	"github.com/dearfuture/capsule-api/pkg/config"
	"github.com/dearfuture/capsule-api/pkg/database"
	"github.com/dearfuture/capsule-api/pkg/logger"
	corsmiddleware "github.com/dearfuture/capsule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dearfuture/capsule-api/pkg/middleware/requestid"
	"github.com/dearfuture/capsule-api/pkg/storage"
)

// @title Dear Future Capsule API
// @version 1.0.0
// @description Time capsule service: seal messages and media until an unlock instant.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	// Media metadata always lives in Postgres, even while the capsule store
	// itself still points at the legacy backend.
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck
	mediaRepo := repository.NewMediaRepository(db)

	// Capsule store backend. Postgres is authoritative; the legacy REST
	// backend remains selectable until its data is migrated over.
	var (
		store       service.CapsuleStore
		capsuleRepo *repository.CapsuleRepository
	)
	if cfg.Store.Backend == config.StoreBackendLegacy {
		store = repository.NewLegacyStore(cfg.Store.LegacyBaseURL, cfg.Store.LegacyTimeout, logr)
		logr.Sugar().Infow("using legacy capsule store", "base_url", cfg.Store.LegacyBaseURL)
	} else {
		capsuleRepo = repository.NewCapsuleRepository(db)
		store = capsuleRepo
	}

	var cacheRepo *repository.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, slug cache disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	localStorage, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)

	mediaSvc := service.NewMediaService(mediaRepo, localStorage, signer, logr, service.MediaServiceConfig{
		BaseURL:   cfg.BaseURL,
		APIPrefix: cfg.APIPrefix,
	})

	var slugCache service.SlugCache
	if cacheRepo != nil {
		slugCache = cacheRepo
	}
	capsuleSvc := service.NewCapsuleService(store, mediaSvc, slugCache, metricsSvc, logr, cfg.Store.SlugCacheTTL)

	if cfg.Hints.Enabled && capsuleRepo != nil {
		hintsSvc := service.NewHintService(capsuleRepo, metricsSvc, logr, service.HintServiceConfig{
			SweepInterval: cfg.Hints.SweepInterval,
			BatchSize:     cfg.Hints.BatchSize,
			Workers:       cfg.Hints.WorkerConcurrency,
			Retries:       cfg.Hints.WorkerRetries,
		})
		hintsSvc.Start(ctx)
		defer hintsSvc.Stop()
	}

	verifier := middleware.NewTokenVerifier(cfg.Auth)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, verifier,
		handler.NewCapsuleHandler(capsuleSvc),
		handler.NewMediaHandler(mediaSvc),
		cfg.Exports.Enabled)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store_backend", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
