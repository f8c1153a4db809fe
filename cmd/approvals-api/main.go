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

	_ "github.com/shulepay/approvals-api/api/swagger"
	"github.com/shulepay/approvals-api/internal/handler"
	"github.com/shulepay/approvals-api/internal/middleware"
	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/internal/repository"
	"github.com/shulepay/approvals-api/internal/service"
	"github.com/shulepay/approvals-api/pkg/cache"
	"github.com/shulepay/approvals-api/pkg/config"
	"github.com/shulepay/approvals-api/pkg/database"
	"github.com/shulepay/approvals-api/pkg/jobs"
	"github.com/shulepay/approvals-api/pkg/logger"
	corsmiddleware "github.com/shulepay/approvals-api/pkg/middleware/cors"
	reqidmiddleware "github.com/shulepay/approvals-api/pkg/middleware/requestid"
	"github.com/shulepay/approvals-api/pkg/storage"
)

// @title ShulePay Approvals API
// @version 1.0.0
// @description Parental approval workflow for school event payments
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, event config cache disabled", "error", err)
		redisClient = nil
	}

	blobs, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	pinRepo := repository.NewPinRepository(db)
	signatureRepo := repository.NewSignatureRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	letterheadRepo := repository.NewLetterheadRepository(db)
	eventRepo := repository.NewEventRepository(db)

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	eventConfigs := service.NewEventConfigCache(eventRepo, redisClient, cfg.Approvals.EventConfigTTL, logr)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "shulepay-approvals",
	})

	pinService := service.NewPinService(pinRepo, userRepo, logr,
		service.WithPinAttemptPolicy(cfg.Approvals.PinMaxAttempts, cfg.Approvals.PinLockDuration),
		service.WithPinMetrics(metrics),
	)

	signatureService := service.NewSignatureService(signatureRepo, blobs, logr)
	templateService := service.NewTemplateService()

	certificateService := service.NewCertificateService(certificateRepo, documentRepo, signatureRepo, userRepo, logr)

	documentService := service.NewDocumentService(
		documentRepo, signatureRepo, signatureService, eventConfigs, eventRepo,
		letterheadRepo, blobs, templateService, signer, userRepo, logr,
		service.WithVerifyBaseURL(cfg.Documents.VerifyBaseURL),
		service.WithCertificateIssuer(certificateService),
		service.WithDocumentMetrics(metrics),
	)

	dispatcher := service.NewNotificationDispatcher(eventRepo, nil, logr)
	notificationQueue := jobs.NewQueue("notifications", dispatcher.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	})
	notifier := service.NewNotificationService(notificationQueue, logr)

	approvalService := service.NewApprovalService(
		approvalRepo, eventRepo, eventConfigs, pinService, signatureService, userRepo, logr,
		service.WithApprovalExpiry(cfg.Approvals.ExpiryWindow),
		service.WithConsentPaperwork(documentService),
		service.WithApprovalNotifier(notifier),
		service.WithApprovalMetrics(metrics),
	)

	letterheadService := service.NewLetterheadService(letterheadRepo, blobs, userRepo, logr,
		service.WithLetterheadLimits(cfg.Letterheads.MaxFileSizeBytes, cfg.Letterheads.AllowedMIMEs),
	)

	authHandler := handler.NewAuthHandler(authService)
	pinHandler := handler.NewPinHandler(pinService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	documentHandler := handler.NewDocumentHandler(documentService)
	certificateHandler := handler.NewCertificateHandler(certificateService)
	letterheadHandler := handler.NewLetterheadHandler(letterheadService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/verify/:code", certificateHandler.VerifyByCode)
	api.GET("/documents/download", documentHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.GET("/auth/me", authHandler.Me)

	authed.PUT("/pins", middleware.RequireRoles(models.RoleParent), pinHandler.Set)
	authed.POST("/pins/verify", middleware.RequireRoles(models.RoleParent), pinHandler.Verify)
	authed.GET("/pins/status", middleware.RequireRoles(models.RoleParent), pinHandler.Status)
	authed.POST("/pins/reset", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), pinHandler.Reset)

	authed.POST("/approvals", middleware.RequireRoles(models.RoleParent), approvalHandler.Request)
	authed.GET("/approvals", approvalHandler.List)
	authed.GET("/approvals/:id", approvalHandler.Get)
	authed.POST("/approvals/:id/reject", approvalHandler.Reject)
	authed.GET("/approvals/:id/can-pay", approvalHandler.CanPay)
	authed.POST("/events/:id/approvals/seed",
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		middleware.Audit(userRepo, models.AuditActionApprovalSeed, "approval"),
		approvalHandler.Seed)

	authed.POST("/documents", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), documentHandler.Generate)
	authed.GET("/documents/:id", documentHandler.Get)
	authed.POST("/documents/:id/signatures", documentHandler.AttachSignature)
	authed.POST("/documents/:id/finalize", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), documentHandler.Finalize)

	authed.POST("/certificates", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), certificateHandler.Issue)
	authed.POST("/certificates/:id/revoke", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), certificateHandler.Revoke)

	authed.GET("/schools/:id/letterheads", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), letterheadHandler.List)
	authed.POST("/schools/:id/letterheads", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), letterheadHandler.Upload)
	authed.PUT("/schools/:id/letterheads/:letterheadId/default", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), letterheadHandler.SetDefault)
	authed.DELETE("/schools/:id/letterheads/:letterheadId", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), letterheadHandler.Delete)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationQueue.Start(ctx)
	defer notificationQueue.Stop()

	sweeper := service.NewExpirySweeper(approvalService, cfg.Approvals.SweepInterval, logr)
	sweeper.Start(ctx)
	defer sweeper.Stop()

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
