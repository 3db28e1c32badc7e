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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/quadriparlanti/qp-api/api/swagger"
	"github.com/quadriparlanti/qp-api/internal/handler"
	"github.com/quadriparlanti/qp-api/internal/middleware"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	"github.com/quadriparlanti/qp-api/internal/service"
	"github.com/quadriparlanti/qp-api/pkg/cache"
	"github.com/quadriparlanti/qp-api/pkg/config"
	"github.com/quadriparlanti/qp-api/pkg/database"
	"github.com/quadriparlanti/qp-api/pkg/jobs"
	"github.com/quadriparlanti/qp-api/pkg/logger"
	corsmiddleware "github.com/quadriparlanti/qp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/quadriparlanti/qp-api/pkg/middleware/requestid"
	"github.com/quadriparlanti/qp-api/pkg/storage"
)

// @title Quadriparlanti API
// @version 1.0.0
// @description School multimedia works catalog
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

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Public.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	workRepo := repository.NewWorkRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	themeRepo := repository.NewThemeRepository(db)
	qrRepo := repository.NewQRRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	exportRepo := repository.NewExportRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "quadriparlanti",
	})
	userSvc := service.NewUserService(userRepo, nil, logr, cfg.JWT.InviteExpiration)

	analyticsSvc := service.NewAnalyticsService(analyticsRepo, qrRepo, workRepo, cacheSvc, logr, service.AnalyticsConfig{
		Enabled:           cfg.Analytics.Enabled,
		IPHashSalt:        cfg.Analytics.IPHashSalt,
		WorkerConcurrency: cfg.Analytics.WorkerConcurrency,
		QueueBuffer:       cfg.Analytics.QueueBuffer,
		CacheTTL:          cfg.Analytics.CacheTTL,
	})
	analyticsSvc.Start(ctx)
	defer analyticsSvc.Stop()

	workSvc := service.NewWorkService(workRepo, userRepo, nil, logr)
	reviewSvc := service.NewReviewService(workRepo, reviewRepo, userRepo, logr)
	themeSvc := service.NewThemeService(themeRepo, cacheSvc, userRepo, nil, logr)
	attachmentFiles, err := storage.NewLocalStorage(cfg.Uploads.AttachmentsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	attachmentSvc := service.NewAttachmentService(workRepo, attachmentFiles, uploadSigner, logr, service.AttachmentConfig{
		MaxSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	})

	publicSvc := service.NewPublicService(workRepo, themeRepo, cacheSvc, analyticsSvc, uploadSigner, logr, service.PublicConfig{
		CacheTTL: cfg.Public.CacheTTL,
		PageSize: cfg.Public.PageSize,
	})

	qrImages, err := storage.NewLocalStorage(cfg.QR.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init qr storage", "error", err)
	}
	qrSvc := service.NewQRService(qrRepo, themeRepo, qrImages, analyticsSvc, logr, service.QRServiceConfig{
		SiteURL:        cfg.SiteURL,
		DefaultLocale:  cfg.Public.DefaultLocale,
		CodeLength:     cfg.QR.CodeLength,
		MaxGenAttempts: cfg.QR.MaxGenAttempts,
		ImageSize:      cfg.QR.ImageSize,
	})

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	var exportSvc *service.ExportService
	exportQueue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
		return exportSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc = service.NewExportService(exportRepo, workRepo, exportFiles, exportQueue, exportSigner, logr, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})
	if cfg.Exports.Enabled {
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportSvc.RecoverPendingJobs(ctx)
		exportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	themeHandler := handler.NewThemeHandler(themeSvc)
	workHandler := handler.NewWorkHandler(workSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	qrHandler := handler.NewQRHandler(qrSvc)
	publicHandler := handler.NewPublicHandler(publicSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
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

	// short-code redirect lives outside the API prefix so printed QR
	// images stay compact
	r.GET("/q/:code", qrHandler.Redirect)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/invite/accept", authHandler.AcceptInvite)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	public := api.Group("/public")
	{
		public.GET("/themes", publicHandler.ListThemes)
		public.GET("/themes/:slug", publicHandler.GetTheme)
		public.GET("/works", publicHandler.ListWorks)
		public.GET("/works/:id", publicHandler.GetWork)
	}

	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	users := api.Group("/users", middleware.JWT(authSvc), adminOnly)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("/invite", userHandler.Invite)
		users.PUT("/:id/status", userHandler.UpdateStatus)
	}

	themes := api.Group("/themes", middleware.JWT(authSvc), adminOnly)
	{
		themes.GET("", themeHandler.List)
		themes.GET("/:id", themeHandler.Get)
		themes.POST("", themeHandler.Create)
		themes.PUT("/reorder", themeHandler.Reorder)
		themes.PUT("/:id", themeHandler.Update)
		themes.POST("/:id/publish", themeHandler.Publish)
		themes.POST("/:id/archive", themeHandler.Archive)
	}

	works := api.Group("/works", middleware.JWT(authSvc))
	{
		works.GET("", workHandler.List)
		works.GET("/:id", workHandler.Get)
		works.POST("", workHandler.Create)
		works.PUT("/:id", workHandler.Update)
		works.POST("/:id/submit", workHandler.Submit)
		works.POST("/:id/archive", workHandler.Archive)
		works.POST("/:id/attachments", attachmentHandler.Upload)
		works.DELETE("/:id/attachments/:attachmentId", attachmentHandler.Delete)
		works.GET("/:id/attachments/:attachmentId/url", attachmentHandler.DownloadURL)
		works.GET("/:id/reviews", reviewHandler.History)
		works.POST("/:id/approve", adminOnly, reviewHandler.Approve)
		works.POST("/:id/reject", adminOnly, reviewHandler.Reject)
	}

	reviews := api.Group("/reviews", middleware.JWT(authSvc), adminOnly)
	{
		reviews.GET("/queue", reviewHandler.Queue)
	}

	qr := api.Group("/qr", middleware.JWT(authSvc), adminOnly)
	{
		qr.GET("", qrHandler.List)
		qr.POST("", qrHandler.Create)
		qr.PUT("/:id", qrHandler.SetActive)
		qr.GET("/:id/image", qrHandler.Image)
	}

	analytics := api.Group("/analytics", middleware.JWT(authSvc), adminOnly)
	{
		analytics.GET("/summary", analyticsHandler.Summary)
		analytics.GET("/scans", analyticsHandler.ScansPerDay)
		analytics.GET("/views", analyticsHandler.ViewsPerDay)
		analytics.GET("/system", metricsHandler.Snapshot)
	}

	// token-only: printed or shared download links work without a session
	api.GET("/attachments/download", attachmentHandler.Download)

	exports := api.Group("/exports")
	{
		exports.GET("/download", exportHandler.Download)
		exports.POST("", middleware.JWT(authSvc), adminOnly, exportHandler.Create)
		exports.GET("/:id", middleware.JWT(authSvc), adminOnly, exportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
