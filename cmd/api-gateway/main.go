package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-timetable-api/api/swagger"
	"github.com/noah-isme/campus-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-timetable-api/internal/middleware"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	"github.com/noah-isme/campus-timetable-api/internal/repository"
	"github.com/noah-isme/campus-timetable-api/internal/service"
	"github.com/noah-isme/campus-timetable-api/pkg/cache"
	"github.com/noah-isme/campus-timetable-api/pkg/config"
	"github.com/noah-isme/campus-timetable-api/pkg/database"
	"github.com/noah-isme/campus-timetable-api/pkg/export"
	"github.com/noah-isme/campus-timetable-api/pkg/jobs"
	"github.com/noah-isme/campus-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-timetable-api/pkg/middleware/requestid"
)

// @title Campus Timetable API
// @version 1.0.0
// @description Timetable generation, conflict resolution and lecturer allocation for campus batches.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()
	clock := service.SystemClock()

	dependencies := map[string]handler.Pinger{"postgres": db}
	var cacheRepo service.CacheRepository
	if cfg.Conflicts.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("conflict cache disabled; redis unreachable", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, "timetable", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			dependencies["redis"] = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Conflicts.CacheTTL, logr, cacheRepo != nil)

	batchRepo := repository.NewBatchRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	generatorSvc := service.NewTimetableGeneratorService(
		batchRepo, roomRepo, allocationRepo, timetableRepo, db, cacheSvc, metrics, clock, validate, logr,
		service.TimetableGeneratorConfig{OverlapMode: cfg.Scheduler.OverlapMode},
	)
	timetableSvc := service.NewTimetableService(timetableRepo, batchRepo, roomRepo, db, cacheSvc, export.NewCSVExporter(','), clock, validate, logr)
	conflictSvc := service.NewConflictService(timetableRepo, db, cacheSvc, cfg.Conflicts.CacheTTL, metrics, validate, logr)
	settingSvc := service.NewSettingService(settingRepo, cfg.Scheduler.DefaultMaxWorkload, validate, logr)
	guard := service.NewWorkloadGuard(allocationRepo, metrics, logr)
	allocationSvc := service.NewAllocationService(allocationRepo, batchRepo, lecturerRepo, settingSvc, guard, validate, logr)
	finder := service.NewSubstituteFinder(lecturerRepo, service.SubstituteFinderConfig{
		Delay:           cfg.Scheduler.SubstituteDelay,
		MinSkillOverlap: cfg.Scheduler.MinSkillOverlap,
	}, logr)
	searchSvc := service.NewSubstituteSearchService(finder, service.SubstituteSearchConfig{
		Workers: cfg.Scheduler.SearchWorkers,
		TTL:     cfg.Scheduler.SubstituteTTL,
	}, clock, metrics, validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	searchSvc.Start(ctx)
	defer searchSvc.Stop()

	scheduler := jobs.NewScheduler(logr)
	if err := scheduler.Register("substitute_search_sweep", cfg.Scheduler.SweepSchedule, func(ctx context.Context) {
		if removed := searchSvc.Sweep(ctx); removed > 0 {
			logr.Info("expired substitute searches removed", zap.Int("count", removed))
		}
	}); err != nil {
		logr.Fatal("failed to register sweep job", zap.Error(err))
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, dependencies)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix, internalmiddleware.JWT(tokenSvc)), routeHandlers{
		generator:   handler.NewTimetableGeneratorHandler(generatorSvc),
		timetables:  handler.NewTimetableHandler(timetableSvc),
		conflicts:   handler.NewConflictHandler(conflictSvc),
		allocations: handler.NewAllocationHandler(allocationSvc, searchSvc),
		settings:    handler.NewSettingHandler(settingSvc),
		metrics:     metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	generator   *handler.TimetableGeneratorHandler
	timetables  *handler.TimetableHandler
	conflicts   *handler.ConflictHandler
	allocations *handler.AllocationHandler
	settings    *handler.SettingHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	admin := internalmiddleware.RBAC(models.RoleAdmin, models.RoleSuperAdmin)

	timetables := api.Group("/timetables")
	timetables.GET("", h.timetables.List)
	timetables.GET("/export", h.timetables.Export)
	timetables.GET("/availability", h.timetables.Availability)
	timetables.GET("/conflicts", h.conflicts.List)
	timetables.GET("/:id", h.timetables.Get)
	timetables.POST("", admin, h.timetables.Create)
	timetables.POST("/generate", admin, h.generator.Generate)
	timetables.POST("/conflicts/resolve", admin, h.conflicts.Resolve)
	timetables.PUT("/:id/subjects/:subjectId", admin, h.timetables.UpdateSubject)
	timetables.DELETE("", admin, h.timetables.DeleteByBatch)
	timetables.DELETE("/:id", admin, h.timetables.Delete)

	allocations := api.Group("/allocations", admin)
	allocations.GET("", h.allocations.List)
	allocations.POST("", h.allocations.Create)
	allocations.POST("/substitutes", h.allocations.SearchSubstitute)
	allocations.POST("/substitutes/accept", h.allocations.AcceptSubstitute)
	allocations.GET("/substitutes/:id", h.allocations.GetSubstituteSearch)
	allocations.DELETE("/substitutes/:id", h.allocations.CancelSubstituteSearch)
	allocations.GET("/:id", h.allocations.Get)
	allocations.PUT("/:id", h.allocations.Update)
	allocations.DELETE("/:id", h.allocations.Delete)

	settings := api.Group("/settings")
	settings.GET("/max-workload", h.settings.GetMaxWorkload)
	settings.PUT("/max-workload", admin, h.settings.SetMaxWorkload)

	api.GET("/metrics/summary", admin, h.metrics.Summary)
}
