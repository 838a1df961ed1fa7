package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/forma-labs/corsi-admin-api/api/swagger"
	"github.com/forma-labs/corsi-admin-api/internal/handler"
	"github.com/forma-labs/corsi-admin-api/internal/middleware"
	"github.com/forma-labs/corsi-admin-api/internal/models"
	"github.com/forma-labs/corsi-admin-api/internal/repository"
	"github.com/forma-labs/corsi-admin-api/internal/service"
	"github.com/forma-labs/corsi-admin-api/pkg/cache"
	"github.com/forma-labs/corsi-admin-api/pkg/config"
	"github.com/forma-labs/corsi-admin-api/pkg/database"
	"github.com/forma-labs/corsi-admin-api/pkg/dates"
	"github.com/forma-labs/corsi-admin-api/pkg/jobs"
	"github.com/forma-labs/corsi-admin-api/pkg/logger"
	corsmiddleware "github.com/forma-labs/corsi-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/forma-labs/corsi-admin-api/pkg/middleware/requestid"
	"github.com/forma-labs/corsi-admin-api/pkg/storage"
)

// @title Corsi Admin API
// @version 1.0.0
// @description Course administration backend with participant spreadsheet import
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	trainerRepo := repository.NewTrainerRepository(db)
	linkRepo := repository.NewCourseParticipantRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "corsi-admin-api",
		Audience:           []string{"corsi-admin"},
	})
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	participantService := service.NewParticipantService(participantRepo, validate, logr)
	companyService := service.NewCompanyService(companyRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, lessonRepo, linkRepo, trainerRepo, participantRepo, validate, logr)
	trainerService := service.NewTrainerService(trainerRepo, validate, logr)

	resolver := service.NewCompanyResolver(companyRepo, logr)
	normalizer := dates.NewNormalizer(cfg.Import.MinBirthYear)
	importService := service.NewImportService(participantRepo, linkRepo, resolver, normalizer, logr)

	exportStorage, err := storage.NewReportArchive(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportService := service.NewExportService(
		participantRepo, courseRepo, lessonRepo, linkRepo,
		exportStorage, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		logr,
	)

	var reportService *service.ReportService
	if cfg.Reports.Enabled {
		worker := service.NewReportWorker(reportJobRepo, exportService, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportService = service.NewReportService(reportJobRepo, queue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	participantHandler := handler.NewParticipantHandler(
		participantService, importService, exportService, authService,
		cacheService, metricsService, cfg.Import.MaxFileSizeBytes,
	)
	companyHandler := handler.NewCompanyHandler(companyService, cacheService)
	courseHandler := handler.NewCourseHandler(courseService)
	trainerHandler := handler.NewTrainerHandler(trainerService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Destructive operations are reserved for admins; operators keep the
	// day-to-day import and enrollment work.
	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		participants := protected.Group("/participants")
		{
			participants.GET("", participantHandler.List)
			participants.POST("", participantHandler.Create)
			participants.POST("/import", participantHandler.Import)
			participants.GET("/export", participantHandler.Export)
			participants.GET("/template", participantHandler.Template)
			participants.GET("/:id", participantHandler.Get)
			participants.PUT("/:id", participantHandler.Update)
			participants.DELETE("/:id", adminOnly, participantHandler.Delete)
		}

		companies := protected.Group("/companies")
		{
			companies.GET("", companyHandler.List)
			companies.POST("", companyHandler.Create)
			companies.GET("/:id", companyHandler.Get)
			companies.PUT("/:id", companyHandler.Update)
			companies.DELETE("/:id", adminOnly, companyHandler.Delete)
		}

		courses := protected.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.POST("", courseHandler.Create)
			courses.GET("/:id", courseHandler.Get)
			courses.PUT("/:id", courseHandler.Update)
			courses.DELETE("/:id", adminOnly, courseHandler.Delete)
			courses.POST("/:id/import", participantHandler.ImportToCourse)
			courses.GET("/:id/lessons", courseHandler.ListLessons)
			courses.POST("/:id/lessons", courseHandler.AddLesson)
			courses.PUT("/:id/lessons/:lessonId", courseHandler.UpdateLesson)
			courses.DELETE("/:id/lessons/:lessonId", courseHandler.DeleteLesson)
			courses.GET("/:id/participants", courseHandler.ListParticipants)
			courses.POST("/:id/participants/:participantId", courseHandler.EnrollParticipant)
			courses.DELETE("/:id/participants/:participantId", courseHandler.RemoveParticipant)
			courses.GET("/:id/trainers", courseHandler.ListTrainers)
			courses.PUT("/:id/trainers", courseHandler.AssignTrainers)
		}

		trainers := protected.Group("/trainers")
		{
			trainers.GET("", trainerHandler.List)
			trainers.POST("", trainerHandler.Create)
			trainers.GET("/:id", trainerHandler.Get)
			trainers.PUT("/:id", trainerHandler.Update)
			trainers.DELETE("/:id", adminOnly, trainerHandler.Delete)
		}

		if reportService != nil {
			reportHandler := handler.NewReportHandler(reportService)
			reports := protected.Group("/reports")
			{
				reports.POST("", reportHandler.Create)
				reports.GET("/:id", reportHandler.Status)
			}
			// Token-authenticated download, reachable without a JWT.
			api.GET("/reports/export/:token", reportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
