package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/cache"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
	"github.com/gabpaderog/maxicoffee-server/internal/events"
	"github.com/gabpaderog/maxicoffee-server/internal/handler"
	"github.com/gabpaderog/maxicoffee-server/internal/qrcode"
	"github.com/gabpaderog/maxicoffee-server/internal/repository"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
	"github.com/gabpaderog/maxicoffee-server/pkg/health"
	"github.com/gabpaderog/maxicoffee-server/pkg/httpmiddleware"
)

const authLimitMessage = "Too many attempts. Please try again in 5 minutes."

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	loc, err := loadLocation(cfg.Reporting.TimeZone)
	if err != nil {
		return errors.Wrap(err, "load reporting time zone")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	var (
		orderRepo    = repository.NewOrderRepository(pool)
		discountRepo = repository.NewDiscountRepository(pool)
		categoryRepo = repository.NewCategoryRepository(pool)
		productRepo  = repository.NewProductRepository(pool)
		addonRepo    = repository.NewAddonRepository(pool)
		userRepo     = repository.NewUserRepository(pool)
		tokenRepo    = repository.NewTokenRepository(pool)
	)
	var reports report.Reader = repository.NewReportRepository(pool)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		}()
		reports = cache.NewReports(reports, rdb, cfg.Redis.CacheTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		lg.Info("Report cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.CacheTTL))
	}

	// Order events: counted always, streamed to Kafka when configured.
	counting, err := events.NewCounting(m.MeterProvider().Meter("cafe-api"))
	if err != nil {
		return errors.Wrap(err, "create event counter")
	}
	publisher := events.Multi{counting}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kp.Close(); err != nil {
				lg.Warn("Close kafka publisher", zap.Error(err))
			}
		}()
		publisher = append(publisher, kp)
		lg.Info("Order events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Domain services.
	tx := txn.NewManager(pool)
	retry := txn.Policy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}
	issuer := auth.NewIssuer(cfg.Auth.Secret, auth.TTLs{
		Access:       cfg.Auth.AccessTTL,
		Refresh:      cfg.Auth.RefreshTTL,
		Verification: cfg.Auth.VerifyTTL,
		Reset:        cfg.Auth.ResetTTL,
	})

	orderService := order.NewService(userRepo, discountRepo, orderRepo, tx,
		order.WithPublisher(publisher),
		order.WithQRRenderer(qrcode.New(cfg.QRSize)),
		order.WithRetryPolicy(retry),
	)
	userService := user.NewService(userRepo, tokenRepo, tx, issuer, user.LogMailer{}, user.Config{
		VerifyURL: cfg.Auth.VerifyURL,
		Retry:     retry,
	})

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			EnforceAdmin: cfg.Auth.EnforceAdmin,
			AuthLimiter: httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.AuthMax,
				Window:  cfg.RateLimit.AuthWindow,
				Message: authLimitMessage,
			}),
		},
		handler.Services{
			Orders:    orderService,
			Discounts: discount.NewService(discountRepo),
			Catalog:   catalog.NewService(categoryRepo, productRepo, addonRepo),
			Users:     userService,
			Reports:   report.NewService(reports, userRepo, loc),
			Tokens:    issuer,
		},
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.Origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(r)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			otelhttp.NewMiddleware("cafe-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
