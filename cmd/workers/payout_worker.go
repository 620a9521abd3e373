package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/config"
	"paymang/paymang-backend/internal/reports"
	"paymang/paymang-backend/internal/reports/scheduler"
	"paymang/paymang-backend/internal/settings"
	"paymang/paymang-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	runOnce := flag.String("run", "", "run one job (approval or payout_export) and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := zap.NewProduction()
	if cfg.Logging.Level == "debug" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("Failed to open ORM session", zap.Error(err))
	}

	resolver := settings.NewResolver(settings.NewRepository(gdb),
		settings.WithCache(settings.NewCache(cfg.Settings.CacheEnabled, cfg.Settings.CacheTTL.Std())),
		settings.WithFetchTimeout(cfg.Settings.FetchTimeout.Std()),
		settings.WithLogger(logger))
	calculator := commissions.NewCalculator(resolver,
		commissions.WithNegativeCommissions(cfg.Commissions.NegativeOnRefund))
	commissionService := commissions.NewService(commissions.NewRepository(gdb), calculator, logger)
	reportsService := reports.NewService(reports.NewPostgresRepository(db), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	delivery, err := newDelivery(ctx, cfg.Exports, logger)
	if err != nil {
		logger.Fatal("Failed to configure export storage", zap.Error(err))
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.ExportSpec = cfg.Exports.PayoutCron
	schedCfg.ApprovalDelay = cfg.Commissions.ApprovalDelay.Std()
	manager := scheduler.NewScheduleManager(commissionService, reportsService, delivery, schedCfg, logger)

	if *runOnce != "" {
		code := runJob(ctx, manager, *runOnce, logger)
		_ = logger.Sync()
		db.Close()
		os.Exit(code)
	}

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("Failed to start payout scheduler", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutting down payout worker...")
	manager.Stop()
	logger.Info("Payout worker exiting")
}

// newDelivery targets S3 when a bucket is configured and the local export
// directory otherwise
func newDelivery(ctx context.Context, cfg config.ExportsConfig, logger *zap.Logger) (*scheduler.DeliveryManager, error) {
	if cfg.S3Bucket == "" {
		logger.Info("No export bucket configured, writing exports locally", zap.String("dir", cfg.LocalDir))
		return scheduler.NewDeliveryManager(storage.NewLocalClient(cfg.LocalDir), "", cfg.S3Prefix, logger), nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3Options{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return scheduler.NewDeliveryManager(client, cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

func runJob(ctx context.Context, manager *scheduler.ScheduleManager, job string, logger *zap.Logger) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	switch job {
	case scheduler.JobApproval:
		n, err := manager.RunApproval(ctx)
		if err != nil {
			logger.Error("Approval sweep failed", zap.Error(err))
			return 1
		}
		logger.Info("Approval sweep done", zap.Int("approved", n))
	case scheduler.JobExport:
		result, err := manager.RunExport(ctx, reports.PreviousMonth(time.Now()))
		if err != nil {
			logger.Error("Payout export failed", zap.Error(err))
			return 1
		}
		logger.Info("Payout export done", zap.String("key", result.Key), zap.String("url", result.DownloadURL))
	default:
		logger.Error("Unknown job", zap.String("job", job))
		return 2
	}
	return 0
}
