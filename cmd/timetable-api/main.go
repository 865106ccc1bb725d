package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sangmeshafzalpur/minimini/api/swagger"
	"github.com/sangmeshafzalpur/minimini/internal/handler"
	internalmiddleware "github.com/sangmeshafzalpur/minimini/internal/middleware"
	"github.com/sangmeshafzalpur/minimini/internal/models"
	"github.com/sangmeshafzalpur/minimini/internal/repository"
	"github.com/sangmeshafzalpur/minimini/internal/service"
	"github.com/sangmeshafzalpur/minimini/pkg/cache"
	"github.com/sangmeshafzalpur/minimini/pkg/config"
	"github.com/sangmeshafzalpur/minimini/pkg/database"
	"github.com/sangmeshafzalpur/minimini/pkg/jobs"
	"github.com/sangmeshafzalpur/minimini/pkg/logger"
	corsmiddleware "github.com/sangmeshafzalpur/minimini/pkg/middleware/cors"
	reqidmiddleware "github.com/sangmeshafzalpur/minimini/pkg/middleware/requestid"
	"github.com/sangmeshafzalpur/minimini/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Division timetable generation, versioning and exports
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, 10*time.Second)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	if cfg.Timetable.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, generation cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Timetable.CacheTTL, logr, cacheRepo.Enabled())

	timetableRepo := repository.NewTimetableRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	timetableSvc := service.NewTimetableService(timetableRepo, slotRepo, db, cacheSvc, metrics, validate, logr, service.TimetableServiceConfig{
		ProposalTTL:  cfg.Timetable.ProposalTTL,
		CacheTTL:     cfg.Timetable.CacheTTL,
		Reproducible: cfg.Timetable.Reproducible,
		MaxTeachers:  cfg.Timetable.MaxTeachers,
	})
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, timetableSvc, files, signer, metrics, validate, logr, service.ExportServiceConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	worker := service.NewExportWorker(exportRepo, exportSvc, metrics, logr)
	queue := jobs.NewQueue("timetable-exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		Logger:      logr,
		OnExhausted: exportSvc.MarkExhausted,
	})
	exportSvc.AttachQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		tokens:     tokenSvc,
		timetables: handler.NewTimetableHandler(timetableSvc),
		exports:    handler.NewExportHandler(exportSvc),
		metrics:    metricsHandler,
		logger:     logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	tokens     internalmiddleware.TokenValidator
	timetables *handler.TimetableHandler
	exports    *handler.ExportHandler
	metrics    *handler.MetricsHandler
	logger     *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	// signed links authenticate themselves
	api.GET("/exports/:token", deps.exports.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(deps.tokens), internalmiddleware.WithResponseMeta())
	writers := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	secured.GET("/timetables", deps.timetables.List)
	secured.GET("/timetables/:id", deps.timetables.Get)
	secured.GET("/exports/jobs/:id", deps.exports.Status)
	secured.GET("/metrics/summary", writers, deps.metrics.Summary)

	secured.POST("/timetables/generate", writers, deps.timetables.Generate)
	secured.POST("/timetables/preview", writers, deps.timetables.Preview)
	secured.POST("/timetables", writers, internalmiddleware.Audit(deps.logger, "save", "timetable"), deps.timetables.Save)
	secured.POST("/timetables/:id/publish", writers, internalmiddleware.Audit(deps.logger, "publish", "timetable"), deps.timetables.Publish)
	secured.DELETE("/timetables/cache", writers, internalmiddleware.Audit(deps.logger, "flush", "generation_cache"), deps.timetables.FlushCache)
	secured.DELETE("/timetables/:id", writers, internalmiddleware.Audit(deps.logger, "delete", "timetable"), deps.timetables.Delete)
	secured.POST("/timetables/:id/exports", writers, deps.exports.Create)
}
