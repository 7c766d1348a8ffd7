package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	identityapp "github.com/grievancenet/backend/internal/application/identity"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/auth"
	"github.com/grievancenet/backend/internal/infrastructure/cache"
	"github.com/grievancenet/backend/internal/infrastructure/config"
	"github.com/grievancenet/backend/internal/infrastructure/drafting"
	"github.com/grievancenet/backend/internal/infrastructure/event"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/infrastructure/mail"
	"github.com/grievancenet/backend/internal/infrastructure/persistence"
	"github.com/grievancenet/backend/internal/infrastructure/storage"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"github.com/grievancenet/backend/internal/interfaces/http/handler"
	"github.com/grievancenet/backend/internal/interfaces/http/middleware"
	"github.com/grievancenet/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/grievancenet/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			GrievanceNet API
//	@version		1.0
//	@description	Civic grievance drafting, mail relay and status tracking for municipal complaints.

//	@contact.name	GrievanceNet
//	@contact.email	grievancenet@gmail.com

//	@host		localhost:5000
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting GrievanceNet backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry providers are no-ops unless enabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log, nil)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log, nil)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() { _ = loggerProvider.Shutdown(context.Background()) }()
	if loggerProvider.IsEnabled() {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		log = logger.Tee(log, loggerProvider.Core(cfg.Telemetry.ServiceName, level))
	}

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() { _ = profiler.Stop() }()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	metrics, err := telemetry.NewGrievanceMetrics(meterProvider.Meter("grievancenet"))
	if err != nil {
		log.Fatal("Failed to register grievance metrics", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate || cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, cfg.Database.Driver, 0, log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Redis backs revocation, idempotency and cross-instance fan-out when enabled
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var (
		blacklist   auth.TokenBlacklist
		idempotency shared.IdempotencyStore
	)
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
		idempotency = cache.NewRedisIdempotencyStoreWithClient(redisClient, "")
	} else {
		blacklist = auth.NewInMemoryTokenBlacklist()
		memStore := cache.NewInMemoryIdempotencyStore()
		defer func() { _ = memStore.Close() }()
		idempotency = memStore
	}

	// Events: the bus feeds the live views and, with Redis, other instances
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	eventBus := event.NewInMemoryEventBus(log)
	feed := grievanceapp.NewFeed(log, grievanceapp.WithMaxSubscribers(cfg.HTTP.StreamMaxClients))
	eventBus.Subscribe(feed)

	if redisClient != nil {
		serializer := event.NewEventSerializer()
		event.RegisterGrievanceEvents(serializer)
		relay := event.NewRedisRelay(redisClient, cfg.Redis.Channel, serializer, eventBus, log)
		eventBus.Subscribe(relay)
		go func() {
			if err := relay.Run(runCtx); err != nil {
				log.Error("Event relay stopped", zap.Error(err))
			}
		}()
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	store := newAttachmentStore(cfg, log)
	mailRelay, dryRun := newMailRelay(cfg, log)
	aiDrafter := newAIDrafter(cfg, log)

	// Repositories and application services
	grievanceRepo := persistence.NewGormGrievanceRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)

	reconciler := grievanceapp.NewReconciler(grievanceapp.ReconcilerConfig{
		Interval: cfg.Submission.ReconcileInterval,
		After:    cfg.Submission.ReconcileAfter,
		Batch:    cfg.Submission.ReconcileBatch,
	}, grievanceRepo, eventBus, log)
	reconciler.SetMetrics(metrics)

	draftService := grievanceapp.NewDraftService(aiDrafter, drafting.NewTemplateDrafter(), cfg.Mail.Recipient, log)
	draftService.SetMetrics(metrics)

	submissionService := grievanceapp.NewSubmissionService(grievanceRepo, mailRelay, eventBus,
		grievanceapp.SubmissionConfig{
			IdempotencyTTL:     cfg.Submission.IdempotencyTTL,
			MaxAttachments:     cfg.Mail.MaxAttachments,
			MaxAttachmentBytes: cfg.Mail.MaxAttachmentBytes,
		},
		log,
		grievanceapp.WithAttachmentStore(store),
		grievanceapp.WithIdempotencyStore(idempotency),
		grievanceapp.WithPromotionScheduler(reconciler),
		grievanceapp.WithSubmissionMetrics(metrics),
	)
	grievanceService := grievanceapp.NewGrievanceService(grievanceRepo, store, eventBus, log,
		grievanceapp.WithStatusMetrics(metrics))

	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist,
		identityapp.AuthServiceConfig{AdminEmails: cfg.Auth.AdminEmails}, log)

	if cfg.Submission.ReconcileEnabled {
		if err := reconciler.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciler", zap.Error(err))
		}
		defer func() {
			if err := reconciler.Stop(context.Background()); err != nil {
				log.Error("Error stopping reconciler", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP handlers
	limits := handler.UploadLimits{
		MaxFiles:     cfg.Mail.MaxAttachments,
		MaxFileBytes: cfg.Mail.MaxAttachmentBytes,
	}
	handlers := router.Handlers{
		Legacy:    handler.NewLegacyHandler(draftService, submissionService, limits),
		Auth:      handler.NewAuthHandler(authService),
		Draft:     handler.NewDraftHandler(draftService),
		Grievance: handler.NewGrievanceHandler(submissionService, grievanceService, limits),
		Stream: handler.NewStreamHandler(feed, grievanceService, metrics, handler.StreamConfig{
			Heartbeat:      cfg.HTTP.StreamHeartbeat,
			AllowedOrigins: cfg.HTTP.CORSAllowOrigins,
		}),
		System: handler.NewSystemHandler(db, version, handler.Features{
			AIDrafting:        aiDrafter != nil,
			AttachmentArchive: store.Enabled(),
			MailDryRun:        dryRun,
		}, feed.Len),
	}

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Global middleware
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, "/health"))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanErrorMarker())

	httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("grievancenet/http"))
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}
	engine.Use(httpMetrics)

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler.IsEnabled()
	engine.Use(middleware.Profiling(profilingCfg))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsCfg))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		engine.Use(middleware.RateLimit(limiter))
	}

	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:      jwtService,
		TokenBlacklist:  blacklist,
		AllowQueryToken: true,
		Logger:          log,
	})

	guards := router.Guards{
		Authenticate: jwtMiddleware,
		Traced:       middleware.TracingAttributeInjector(),
	}
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		defer authLimiter.Stop()
		guards.AuthRateLimit = middleware.RateLimit(authLimiter)
	}

	// Health check endpoint
	engine.GET("/health", handlers.System.Health)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	router.RegisterLegacyRoutes(engine, handlers.Legacy)
	routes := router.NewAPI(router.NewRouter(engine), handlers, guards).Setup()
	for _, rt := range routes {
		log.Debug("Route registered",
			zap.String("group", rt.Group),
			zap.String("method", rt.Method),
			zap.String("path", rt.Path),
		)
	}
	log.Info("API routes registered", zap.Int("count", len(routes)))

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Ending the subscriptions lets open streams return before Shutdown waits on them
	feed.Close()
	stopRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newAttachmentStore returns the S3 archive, or a store that keeps nothing
// when archiving is off
func newAttachmentStore(cfg *config.Config, log *zap.Logger) grievanceapp.AttachmentStore {
	if !cfg.Storage.Enabled {
		log.Info("Attachment archive disabled")
		return storage.DisabledAttachmentStore{}
	}
	store, err := storage.NewS3AttachmentStore(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		log.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}
	log.Info("Attachment archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	return store
}

// newMailRelay returns the SMTP relay. Without credentials outside
// production mail is only logged; the second result reports that.
func newMailRelay(cfg *config.Config, log *zap.Logger) (grievanceapp.MailRelay, bool) {
	if !cfg.Mail.Enabled() {
		log.Warn("Mail credentials missing, grievances are logged instead of sent")
		return mail.NewDryRunRelay(log), true
	}
	relay, err := mail.NewSMTPRelay(cfg.Mail, log)
	if err != nil {
		log.Fatal("Failed to initialize mail relay", zap.Error(err))
	}
	log.Info("Mail relay ready",
		zap.String("host", cfg.Mail.Host),
		zap.String("recipient", cfg.Mail.Recipient),
	)
	return relay, false
}

// newAIDrafter returns nil when AI drafting is off or misconfigured, leaving
// the template drafter to answer
func newAIDrafter(cfg *config.Config, log *zap.Logger) grievanceapp.Drafter {
	if !cfg.AI.Enabled {
		return nil
	}
	d, err := drafting.NewOpenAIDrafter(cfg.AI, log)
	if err != nil {
		log.Warn("AI drafting unavailable, using template drafts", zap.Error(err))
		return nil
	}
	log.Info("AI drafting enabled", zap.String("model", cfg.AI.Model))
	return d
}
