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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-api/api/swagger"
	"github.com/noah-isme/lms-api/internal/client"
	"github.com/noah-isme/lms-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// @title LMS API
// @version 1.0.0
// @description Courses, lectures, assignments, enrollments, payments and teacher payroll.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	signer := storage.NewSignedURLSigner(cfg.Storage.SigningSecret, cfg.Storage.URLTTL)
	store, localStore, err := buildStore(ctx, cfg.Storage, signer)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err))
	}

	validate := validator.New()

	profileRepo := repository.NewProfileRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	attendanceRepo := repository.NewStudentAttendanceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db, cfg.Database.SessionRole)
	payrollRepo := repository.NewPayrollRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	metricsSvc := service.NewMetricsService()
	hub := service.NewInvalidationHub(logr)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, hub, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	compensation := jobs.NewQueue("upload_compensation", service.NewUploadCompensator(store, metricsSvc, logr), jobs.QueueConfig{
		Workers:    cfg.Compensation.Workers,
		MaxRetries: cfg.Compensation.MaxRetries,
		RetryDelay: cfg.Compensation.RetryDelay,
		Logger:     logr,
	})
	compensation.Start(ctx)
	defer compensation.Stop()

	authSvc := service.NewAuthService(profileRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           cfg.JWT.Audience,
		SingleSession:      cfg.JWT.SingleSession,
	})
	courseSvc := service.NewCourseService(courseRepo, profileRepo, enrollmentRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, cacheSvc, metricsSvc, validate, logr, service.EnrollmentConfig{
		EnforceCapacity: cfg.Enrollments.EnforceCapacity,
	})
	lectureSvc := service.NewLectureService(lectureRepo, courseRepo, enrollmentRepo, attendanceRepo, cacheSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, courseRepo, enrollmentRepo, store, compensation, cacheSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		Submissions:  submissionRepo,
		Assignments:  assignmentRepo,
		Courses:      courseRepo,
		Enrollments:  enrollmentRepo,
		Store:        store,
		Fallback:     client.NewSubmissionFallback(cfg.Submissions.FallbackURL, cfg.Submissions.FallbackTimeout, nil, logr),
		Compensation: compensation,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
		Validator:    validate,
		Logger:       logr,
		Config: service.SubmissionConfig{
			MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
			ChunkThreshold:    cfg.Uploads.ChunkThreshold,
			ChunkSize:         cfg.Uploads.ChunkSizeBytes,
			AllowedExtensions: cfg.Uploads.AllowedExtensions,
			FallbackEnabled:   cfg.Submissions.FallbackEnabled,
		},
	})
	payrollSvc := service.NewPayrollService(payrollRepo, lectureRepo, courseRepo, cacheSvc, metricsSvc, validate, logr, service.PayrollConfig{
		BaseAmount: cfg.Payroll.BaseAmount,
		Currency:   cfg.Payroll.Currency,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, cacheSvc, metricsSvc, validate, logr, cfg.Payroll.Currency)
	profileSvc := service.NewProfileService(profileRepo, cacheSvc, metricsSvc, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Enrollments: enrollmentRepo,
		Courses:     courseRepo,
		Lectures:    lectureRepo,
		Assignments: assignmentRepo,
		Submissions: submissionRepo,
		Attendance:  attendanceRepo,
		Payroll:     payrollRepo,
		Profiles:    profileRepo,
		Payments:    paymentRepo,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Logger:      logr,
		CacheTTL:    cfg.Cache.TTL,
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if localStore != nil {
		r.GET("/files/*key", handler.NewFileHandler(localStore, signer).Serve)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.CookieSettings{
			Name:   cfg.JWT.CookieName,
			MaxAge: cfg.JWT.Expiration,
			Secure: cfg.Env == config.EnvProduction,
		}),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Lectures:    handler.NewLectureHandler(lectureSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		Submissions: handler.NewSubmissionHandler(submissionSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Payroll:     handler.NewPayrollHandler(payrollSvc),
		Payments:    handler.NewPaymentHandler(paymentSvc),
		Profiles:    handler.NewProfileHandler(profileSvc),
		Events:      handler.NewEventHandler(hub, 25*time.Second),
		Metrics:     metricsHandler,
	}, handler.RouteDeps{
		Tokens:     authSvc,
		CookieName: cfg.JWT.CookieName,
		Audit:      profileRepo,
		Logger:     logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver, "cache", cacheSvc.Enabled())
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

// buildStore returns the configured object store. The local store is also
// returned on its own so /files can serve signed downloads from it.
func buildStore(ctx context.Context, cfg config.StorageConfig, signer *storage.SignedURLSigner) (storage.Store, *storage.LocalStore, error) {
	switch cfg.Driver {
	case config.StorageDriverB2:
		b2, err := storage.NewB2Store(ctx, cfg.B2KeyID, cfg.B2AppKey, cfg.B2Bucket)
		if err != nil {
			return nil, nil, err
		}
		return b2, nil, nil
	case config.StorageDriverLocal, "":
		local, err := storage.NewLocalStore(cfg.Dir, cfg.PublicBaseURL, signer)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
