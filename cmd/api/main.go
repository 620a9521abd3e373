package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/config"
	"paymang/paymang-backend/internal/database"
	"paymang/paymang-backend/internal/reports"
	"paymang/paymang-backend/internal/sales"
	"paymang/paymang-backend/internal/settings"
	"paymang/paymang-backend/internal/webhooks"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	migrate := flag.Bool("migrate", false, "run database migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if *migrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Configuration resolver
	settingsRepo := settings.NewRepository(db.Gorm)
	resolver := settings.NewResolver(settingsRepo,
		settings.WithCache(settings.NewCache(cfg.Settings.CacheEnabled, cfg.Settings.CacheTTL.Std())),
		settings.WithFetchTimeout(cfg.Settings.FetchTimeout.Std()),
		settings.WithLogger(logger))
	settingsService := settings.NewService(settingsRepo, resolver, logger)

	// Commission ledger
	calculator := commissions.NewCalculator(resolver,
		commissions.WithNegativeCommissions(cfg.Commissions.NegativeOnRefund))
	commissionService := commissions.NewService(commissions.NewRepository(db.Gorm), calculator, logger)

	// Sales and gateway intake
	salesService := sales.NewService(sales.NewRepository(db.Gorm), commissionService, resolver, logger)
	webhookHandler := webhooks.NewHandler(salesService, resolver, logger)

	// Reporting
	reportsService := reports.NewService(reports.NewPostgresRepository(db.SQLX), logger)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	api := router.Group("/api/v1")
	{
		settings.NewHandler(settingsService, logger).RegisterRoutes(api)
		commissions.NewHandler(commissionService, logger).RegisterRoutes(api)
		sales.NewHandler(salesService, logger).RegisterRoutes(api)
		reports.NewHandler(reportsService, logger).RegisterRoutes(api)
	}
	webhookHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := db.SQLX.PingContext(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
