package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/config"
	"paymang/paymang-backend/internal/sales"
	"paymang/paymang-backend/internal/settings"
)

// DB holds the ORM handle used by the write side and an sqlx handle over
// the same pool for reporting queries.
type DB struct {
	Gorm *gorm.DB
	SQLX *sqlx.DB
}

// Open connects to PostgreSQL and applies pool limits
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db_name", cfg.DBName))

	gdb, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		// Maps unique violations to gorm.ErrDuplicatedKey for webhook idempotency.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime.Std())

	return &DB{Gorm: gdb, SQLX: sqlx.NewDb(sqlDB, "postgres")}, nil
}

// Migrate creates or updates the tables owned by this service
func (d *DB) Migrate() error {
	if err := d.Gorm.AutoMigrate(
		&settings.Setting{},
		&sales.Sale{},
		&sales.Payment{},
		&commissions.Commission{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.SQLX.Close()
}
