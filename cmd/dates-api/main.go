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

	_ "github.com/geet-h17/canvas-lms/api/swagger"
	"github.com/geet-h17/canvas-lms/internal/handler"
	"github.com/geet-h17/canvas-lms/internal/middleware"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/internal/repository"
	"github.com/geet-h17/canvas-lms/internal/service"
	"github.com/geet-h17/canvas-lms/pkg/cache"
	"github.com/geet-h17/canvas-lms/pkg/config"
	"github.com/geet-h17/canvas-lms/pkg/database"
	"github.com/geet-h17/canvas-lms/pkg/jobs"
	"github.com/geet-h17/canvas-lms/pkg/logger"
	corsmiddleware "github.com/geet-h17/canvas-lms/pkg/middleware/cors"
	reqidmiddleware "github.com/geet-h17/canvas-lms/pkg/middleware/requestid"
	"github.com/geet-h17/canvas-lms/pkg/storage"
)

// @title Canvas LMS Dates API
// @version 1.0.0
// @description Assignment date windows, overrides and date-policy validation
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	termRepo := repository.NewTermRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	gradingPeriodRepo := repository.NewGradingPeriodRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Policy.CacheTTL, logr, cfg.Policy.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "canvas-lms-dates-api",
	})
	settingsSvc := service.NewSettingsService(settingRepo, termRepo, userRepo, cacheSvc, nil, logr, service.SettingsServiceConfig{})
	policySvc := service.NewPolicyService(courseRepo, termRepo, gradingPeriodRepo, settingsSvc, cacheSvc, metricsSvc, logr, cfg.Policy.CacheTTL)
	validationSvc := service.NewValidationService(policySvc, nil, metricsSvc, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, overrideRepo, validationSvc, userRepo, nil, logr)
	overrideSvc := service.NewOverrideService(overrideRepo, assignmentRepo, validationSvc, userRepo, nil, logr)
	gradingPeriodSvc := service.NewGradingPeriodService(gradingPeriodRepo, termRepo, cacheSvc, userRepo, nil, logr)
	termSvc := service.NewTermService(termRepo, cacheSvc, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, termRepo, policySvc, nil, logr)

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(courseRepo, assignmentRepo, overrideRepo, policySvc, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc = service.NewReportService(reportRepo, courseRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	datesHandler := handler.NewDatesHandler(policySvc, validationSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	termHandler := handler.NewTermHandler(termSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	overrideHandler := handler.NewOverrideHandler(overrideSvc)
	gradingPeriodHandler := handler.NewGradingPeriodHandler(gradingPeriodSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	authed := auth.Group("", middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.PUT("/password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	adminOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	editors := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin)

	protected := api.Group("", middleware.JWT(authSvc))

	protected.GET("/courses", courseHandler.List)
	protected.GET("/courses/:courseId", courseHandler.Get)
	protected.POST("/courses", adminOnly, courseHandler.Create)
	protected.PUT("/courses/:courseId", adminOnly, courseHandler.Update)

	protected.GET("/courses/:courseId/date-policy", datesHandler.DatePolicy)
	protected.POST("/courses/:courseId/date-validations", datesHandler.ValidateDates)

	protected.GET("/terms", termHandler.List)
	protected.GET("/terms/:termId", termHandler.Get)
	protected.POST("/terms", adminOnly, termHandler.Create)
	protected.PUT("/terms/:termId", adminOnly, termHandler.Update)
	protected.DELETE("/terms/:termId", adminOnly, termHandler.Delete)

	protected.GET("/courses/:courseId/assignments", assignmentHandler.List)
	protected.POST("/courses/:courseId/assignments", editors, assignmentHandler.Create)
	protected.GET("/assignments/:id", assignmentHandler.Get)
	protected.PATCH("/assignments/:id/dates", editors, assignmentHandler.UpdateDates)
	protected.GET("/assignments/:id/effective-dates", assignmentHandler.EffectiveDates)

	protected.GET("/assignments/:id/overrides", overrideHandler.List)
	protected.POST("/assignments/:id/overrides", editors, overrideHandler.Create)
	protected.PUT("/overrides/:id", editors, overrideHandler.Update)
	protected.DELETE("/overrides/:id", editors, overrideHandler.Delete)

	protected.GET("/terms/:termId/grading-periods", gradingPeriodHandler.ListByTerm)
	protected.POST("/terms/:termId/grading-periods", adminOnly, gradingPeriodHandler.Create)
	protected.PUT("/grading-periods/:id", adminOnly, gradingPeriodHandler.Update)
	protected.DELETE("/grading-periods/:id", adminOnly, gradingPeriodHandler.Delete)

	protected.GET("/settings", adminOnly, settingsHandler.List)
	protected.PUT("/settings", adminOnly, settingsHandler.BulkUpdate)
	protected.GET("/settings/:key", adminOnly, settingsHandler.Get)
	protected.PUT("/settings/:key", adminOnly, settingsHandler.Update)

	protected.GET("/metrics/system", adminOnly, metricsHandler.System)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc, logr)
		protected.POST("/reports/generate", editors, reportHandler.GenerateReport)
		protected.GET("/reports/:id/status", reportHandler.ReportStatus)
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	logr.Sugar().Infow("server stopped")
}
