package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	auditapp "github.com/storefront/backend/internal/application/audit"
	cartapp "github.com/storefront/backend/internal/application/cart"
	checkoutapp "github.com/storefront/backend/internal/application/checkout"
	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/infrastructure/audit"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/payment"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Storefront Backend API
//	@version		1.0
//	@description	Cart, checkout, order ledger, tracking and returns for the storefront
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/storefront/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const appVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger used while telemetry starts
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// Initialize telemetry (tracing, metrics, log export, profiling)
	tel, err := telemetry.Setup(rootCtx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			bootLog.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	// Application logger, teed to OTLP when log export is enabled
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.Telemetry.ServiceName,
	}, tel.LogCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Storefront Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Business metrics
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:    tel.Meter.Meter("storefront/business"),
		Logger:   log,
		Provider: telemetry.NewGormLifecycleMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}
	if tel.Meter.IsEnabled() {
		businessMetrics.StartPeriodicCollection(rootCtx, cfg.Telemetry.MetricsInterval)
		defer businessMetrics.Stop()
	}

	// Redis-or-memory stores (carts, idempotency claims, tracking channel)
	stores, err := cache.NewStoreFactory(cfg,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).Build()
	if err != nil {
		log.Fatal("Failed to initialize stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing stores", zap.Error(err))
		}
	}()

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	catalog := persistence.NewGormCatalog(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Audit sink
	auditSink := audit.NewAsyncSink(persistence.NewGormAuditRepository(db.DB), log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auditSink.Close(ctx); err != nil {
			log.Error("Error flushing audit sink", zap.Error(err))
		}
	}()

	// Payment gateway
	stripeGateway, err := payment.NewStripeCheckoutGateway(payment.StripeConfigFromPayment(cfg.Payment), log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}
	paymentGateway := payment.NewBreakerGateway(stripeGateway, cfg.Payment, log,
		payment.WithSuccessPredicate(payment.IsClientError),
	)

	// Initialize application services
	cartService := cartapp.NewCartService(stores.Carts, catalog, auditSink, log)

	publicURL := strings.TrimRight(cfg.App.PublicURL, "/")
	checkoutService := checkoutapp.NewCheckoutService(
		stores.Carts,
		catalog,
		paymentGateway,
		orderRepo,
		stores.Idempotency,
		checkoutapp.Config{
			Currency:   cfg.Payment.Currency,
			SuccessURL: publicURL + "/api/v1/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  publicURL + "/api/v1/checkout/cancel?session_id={CHECKOUT_SESSION_ID}",
			Countries:  cfg.Payment.AllowedCountries,
			ClaimTTL:   cfg.Checkout.ClaimTTL,
		},
		log,
	)
	checkoutService.SetMetrics(businessMetrics)

	orderService := orderapp.NewOrderService(orderRepo, txScope, log)
	trackingService := orderapp.NewTrackingService(orderRepo, txScope, log)
	returnService := orderapp.NewReturnService(orderRepo, returnRepo, txScope, log)
	returnReconciler := orderapp.NewReturnReconciler(orderRepo, returnRepo, txScope, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	auditHandler := event.NewIdempotentHandler(auditapp.NewAuditEventHandler(auditSink, log), stores.Idempotency, log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)

	broadcastHandler := orderapp.NewTrackingBroadcastHandler(stores.Tracking, businessMetrics, log)
	eventBus.Subscribe(broadcastHandler, broadcastHandler.EventTypes()...)

	checkoutService.SetEventPublisher(eventBus)
	orderService.SetEventPublisher(eventBus)
	trackingService.SetEventPublisher(eventBus)
	returnService.SetEventPublisher(eventBus)

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Return summary reconciliation
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
			Enabled:           true,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     3,
			RetryDelay:        30 * time.Second,
		}, scheduler.NewMaintenanceExecutor(returnReconciler), log)
		if err := sched.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sched.Stop(ctx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewIntervalTrigger(cfg.Scheduler.ReconcileInterval, scheduler.JobTypeReconcileReturns, sched, log)
		if err := trigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start reconcile trigger", zap.Error(err))
		}
		defer func() {
			_ = trigger.Stop(context.Background())
		}()
		log.Info("Return reconciliation scheduled", zap.Duration("interval", cfg.Scheduler.ReconcileInterval))
	}

	// Initialize auth
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if client := stores.Client(); client != nil {
		tokenBlacklist = auth.NewRedisTokenBlacklist(client)
	} else {
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	}

	// Initialize handlers
	streamHandler := handler.NewTrackingStreamHandler(stores.Tracking,
		handler.WithStreamLogger(log),
		handler.WithStreamHeartbeat(cfg.Tracking.Heartbeat),
		handler.WithStreamMaxClients(cfg.Tracking.MaxClients),
		handler.WithStreamClientBuffer(cfg.Tracking.ClientBuffer),
		handler.WithStreamMetrics(businessMetrics),
	)
	if err := streamHandler.Start(); err != nil {
		log.Fatal("Failed to start tracking stream", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, appVersion, db)
	handlers := router.Handlers{
		Cart:     handler.NewCartHandler(cartService),
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Order:    handler.NewOrderHandler(orderService, trackingService),
		Return:   handler.NewReturnHandler(returnService),
		Stream:   streamHandler,
		System:   systemHandler,
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Register custom validators with Gin's binding engine
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	// Apply global middleware in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Logger - Log requests with a request-scoped logger
	// 3. Recovery - Catch panics
	// 4. Tracing - Start the request span
	// 5. Metrics - Record HTTP metrics
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetricsWithMeter(tel.Meter.Meter("storefront/http"), tel.Meter.IsEnabled()))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
		},
		Logger: log,
	}
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	// Swagger documentation endpoint
	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any",
			middleware.SwaggerProtection(cfg.Swagger, jwtMiddleware),
			router.SwaggerHandler(cfg.Swagger.SpecPath),
		)
	}

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(jwtMiddleware, middleware.TracingAttributeInjector())

	// Rate limiting (if enabled), keyed per client IP, shared through Redis when available
	if cfg.HTTP.RateLimitEnabled {
		var limiter middleware.Limiter
		if client := stores.Client(); client != nil {
			limiter = middleware.NewRedisRateLimiter(client, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		} else {
			memLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
			defer memLimiter.Stop()
			limiter = memLimiter
		}
		r.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = tel.Profiler.IsEnabled()
	r.Use(middleware.ProfilingWithConfig(profiling))

	// Register domain route groups; every route but the live stream is
	// bounded by the write timeout
	for _, group := range router.StorefrontGroups(handlers, middleware.Timeout(cfg.HTTP.WriteTimeout)) {
		r.Register(group)
	}

	// Setup routes
	r.Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Close live streams first so Shutdown does not wait on them
	streamHandler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopRoot()

	log.Info("Server exited gracefully")
}
