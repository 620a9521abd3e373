package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Settings    SettingsConfig    `json:"settings"`
	Commissions CommissionsConfig `json:"commissions"`
	Exports     ExportsConfig     `json:"exports"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	User           string   `json:"user"`
	Password       string   `json:"password"`
	DBName         string   `json:"db_name"`
	SSLMode        string   `json:"ssl_mode"`
	MaxConnections int      `json:"max_connections"`
	MaxIdleConns   int      `json:"max_idle_conns"`
	MaxLifetime    Duration `json:"max_lifetime"`
}

// SettingsConfig controls the configuration resolver backed by the app_settings table
type SettingsConfig struct {
	CacheEnabled bool     `json:"cache_enabled"`
	CacheTTL     Duration `json:"cache_ttl"`
	FetchTimeout Duration `json:"fetch_timeout"`
}

// CommissionsConfig controls commission generation
type CommissionsConfig struct {
	// NegativeOnRefund applies rates to negative (refund) amounts instead of clamping to zero.
	NegativeOnRefund bool `json:"negative_on_refund"`
	// ApprovalDelay is how long a pending commission waits before approval.
	ApprovalDelay Duration `json:"approval_delay"`
}

// ExportsConfig controls payout exports
type ExportsConfig struct {
	S3Bucket          string `json:"s3_bucket"`
	S3Region          string `json:"s3_region"`
	S3Prefix          string `json:"s3_prefix"`
	S3Endpoint        string `json:"s3_endpoint"`
	S3AccessKeyID     string `json:"s3_access_key_id"`
	S3SecretAccessKey string `json:"-"`
	LocalDir          string `json:"local_dir"`
	PayoutCron        string `json:"payout_cron"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// Duration is a time.Duration that decodes from JSON strings like "60s"
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when nothing else is provided
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(90 * time.Second),
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "paymang",
			SSLMode:        "require",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    Duration(30 * time.Minute),
		},
		Settings: SettingsConfig{
			CacheEnabled: true,
			CacheTTL:     Duration(60 * time.Second),
			FetchTimeout: Duration(3 * time.Second),
		},
		Commissions: CommissionsConfig{
			NegativeOnRefund: false,
			ApprovalDelay:    Duration(7 * 24 * time.Hour),
		},
		Exports: ExportsConfig{
			S3Prefix:   "payouts/",
			LocalDir:   "exports",
			PayoutCron: "0 0 6 1 * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}

	envDuration("SETTINGS_CACHE_TTL", &config.Settings.CacheTTL)
	envDuration("SETTINGS_FETCH_TIMEOUT", &config.Settings.FetchTimeout)
	envBool("SETTINGS_CACHE_ENABLED", &config.Settings.CacheEnabled)

	envBool("COMMISSIONS_NEGATIVE_ON_REFUND", &config.Commissions.NegativeOnRefund)
	envDuration("COMMISSIONS_APPROVAL_DELAY", &config.Commissions.ApprovalDelay)

	if bucket := os.Getenv("EXPORTS_S3_BUCKET"); bucket != "" {
		config.Exports.S3Bucket = bucket
	}
	if region := os.Getenv("EXPORTS_S3_REGION"); region != "" {
		config.Exports.S3Region = region
	}
	if prefix := os.Getenv("EXPORTS_S3_PREFIX"); prefix != "" {
		config.Exports.S3Prefix = prefix
	}
	if endpoint := os.Getenv("EXPORTS_S3_ENDPOINT"); endpoint != "" {
		config.Exports.S3Endpoint = endpoint
	}
	if keyID := os.Getenv("EXPORTS_S3_ACCESS_KEY_ID"); keyID != "" {
		config.Exports.S3AccessKeyID = keyID
	}
	if secret := os.Getenv("EXPORTS_S3_SECRET_ACCESS_KEY"); secret != "" {
		config.Exports.S3SecretAccessKey = secret
	}
	if spec := os.Getenv("EXPORTS_PAYOUT_CRON"); spec != "" {
		config.Exports.PayoutCron = spec
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the values the service cannot start without
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Database.DBName == "" {
		return errors.New("database.db_name is required")
	}
	if c.Settings.CacheTTL <= 0 {
		return errors.New("settings.cache_ttl must be positive")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
