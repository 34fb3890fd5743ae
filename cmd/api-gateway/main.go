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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-billing-api/api/swagger"
	"github.com/noah-isme/course-billing-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-billing-api/internal/middleware"
	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/internal/repository"
	"github.com/noah-isme/course-billing-api/internal/service"
	"github.com/noah-isme/course-billing-api/pkg/cache"
	"github.com/noah-isme/course-billing-api/pkg/config"
	"github.com/noah-isme/course-billing-api/pkg/database"
	"github.com/noah-isme/course-billing-api/pkg/jobs"
	"github.com/noah-isme/course-billing-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/course-billing-api/pkg/middleware/requestid"
)

// @title Course Billing API
// @version 1.0.0
// @description Enrollment requests, installment payments and their consistency rules for a training center.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	templateRepo := repository.NewInstallmentTemplateRepository(db)
	studentCourseRepo := repository.NewStudentCourseRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Statistics.CacheTTL, logr, cfg.Statistics.CacheEnabled)

	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationSvc := service.NewNotificationService(queue, service.NewLogSender(logr), metricsSvc, logr, service.NotificationConfig{
		Enabled:          cfg.Notifications.Enabled,
		BreakerThreshold: cfg.Notifications.BreakerThreshold,
		BreakerTimeout:   cfg.Notifications.BreakerTimeout,
	})
	if cfg.Notifications.Enabled {
		queue.Start(ctx)
		defer queue.Stop()
	}

	configSvc := service.NewConfigurationService(configRepo, auditRepo, validate, logr, models.CenterSettings{
		RegistrationFee:         cfg.Billing.RegistrationFee,
		EnrollmentValidityHours: cfg.Billing.EnrollmentValidityHours,
	})
	templateSvc := service.NewInstallmentTemplateService(courseRepo, templateRepo, configSvc, auditRepo, validate, logr)
	statisticsSvc := service.NewStatisticsService(paymentRepo, cacheSvc, cfg.Statistics.CacheTTL, logr)
	coordinator := service.NewCoordinator(enrollmentRepo, auditRepo, logr)

	paymentSvc := service.NewPaymentService(service.PaymentServiceDeps{
		Payments:       paymentRepo,
		Courses:        courseRepo,
		Templates:      templateRepo,
		Settings:       configSvc,
		Guard:          coordinator,
		FeeListener:    coordinator,
		RefundListener: coordinator,
		Audit:          auditRepo,
		Statistics:     statisticsSvc,
		Notifier:       notificationSvc,
		Metrics:        metricsSvc,
		Logger:         logr,
	})
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Enrollments:    enrollmentRepo,
		Courses:        courseRepo,
		Classes:        classRepo,
		StudentCourses: studentCourseRepo,
		Payments:       paymentSvc,
		FeeReconciler:  coordinator,
		Settings:       configSvc,
		Audit:          auditRepo,
		Notifier:       notificationSvc,
		Metrics:        metricsSvc,
		Validator:      validate,
		Logger:         logr,
	})
	exportSvc := service.NewExportService(paymentSvc, statisticsSvc, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, exportSvc)
	statisticsHandler := handler.NewStatisticsHandler(statisticsSvc, exportSvc)
	templateHandler := handler.NewInstallmentTemplateHandler(templateSvc)
	configHandler := handler.NewConfigurationHandler(configSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.Use(internalmiddleware.JWT(tokenSvc))
	admin := internalmiddleware.RequireAdmin()

	enrollments := api.Group("/enrollments")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.POST("", enrollmentHandler.Create)
	enrollments.POST("/expire", admin, enrollmentHandler.Expire)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.GET("/:id/preconditions", admin, enrollmentHandler.Preconditions)
	enrollments.POST("/:id/approve", admin, enrollmentHandler.Approve)
	enrollments.POST("/:id/reject", admin, enrollmentHandler.Reject)
	enrollments.POST("/:id/sync", admin, enrollmentHandler.Sync)
	enrollments.DELETE("/:id", enrollmentHandler.Delete)
	enrollments.POST("/:id/refund", admin, paymentHandler.Refund)
	enrollments.DELETE("/:id/payment", admin, paymentHandler.Delete)

	payments := api.Group("/payments")
	payments.GET("", paymentHandler.List)
	payments.GET("/overdue", admin, paymentHandler.Overdue)
	payments.GET("/:id", paymentHandler.Get)
	payments.GET("/:id/statement", internalmiddleware.Audit(auditRepo, logr, "EXPORT", "payment_statement"), paymentHandler.Statement)
	payments.PATCH("/:id/installments/:name", admin, paymentHandler.UpdateInstallment)
	payments.POST("/:id/installments/:name/pay", admin, paymentHandler.PayInstallment)

	statistics := api.Group("/statistics", admin)
	statistics.GET("/payments", statisticsHandler.Payments)
	statistics.GET("/payments/export", internalmiddleware.Audit(auditRepo, logr, "EXPORT", "payment_statistics"), statisticsHandler.Export)

	courses := api.Group("/courses")
	courses.GET("/:id/installment-template", templateHandler.Get)
	courses.PUT("/:id/installment-template", admin, templateHandler.Upsert)
	courses.DELETE("/:id/installment-template", admin, templateHandler.Delete)

	settings := api.Group("/settings")
	settings.GET("/center", configHandler.Get)
	settings.PUT("/center", admin, configHandler.Update)

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
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
