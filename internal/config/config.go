// Package config loads the pipeline settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"movie-pipeline/internal/logger"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Metrics backends
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
)

// Configuration holds every setting of a pipeline run
type Configuration struct {
	MongoDBConnectionURI string        `env:"MONGODB_CONNECTION_URI" envDefault:"mongodb://localhost:27017/"`
	MongoDBName          string        `env:"MONGODB_DBNAME" envDefault:"movies" validate:"required"`
	MongoDBTimeout       time.Duration `env:"MONGODB_TIMEOUT" envDefault:"10s"`
	StoreBackend         string        `env:"STORE_BACKEND" envDefault:"mongo" validate:"oneof=mongo memory"`

	SourcePaths       []string `env:"SOURCE_PATHS" envSeparator:","`
	ListDelimiter     string   `env:"LIST_DELIMITER" envDefault:"," validate:"required"`
	CastViewDelimiter string   `env:"CAST_VIEW_DELIMITER" envDefault:"|" validate:"required"`

	LedgerPath string `env:"LEDGER_PATH" envDefault:"pipeline.db"` // empty disables the ledger
	ReportDir  string `env:"REPORT_DIR" envDefault:"reports"`

	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"none" validate:"oneof=none prometheus datadog"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL" validate:"required_if=MetricsBackend prometheus"`
	PushgatewayJob string `env:"PUSHGATEWAY_JOB" envDefault:"movie_pipeline"`
	DatadogAddr    string `env:"DATADOG_ADDR" envDefault:"127.0.0.1:8125"`
	DatadogPrefix  string `env:"DATADOG_NAMESPACE" envDefault:"movies."`

	// Report archive, enabled when ARCHIVE_ENDPOINT is set
	ArchiveEndpoint  string `env:"ARCHIVE_ENDPOINT"`
	ArchiveAccessKey string `env:"ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey string `env:"ARCHIVE_SECRET_KEY"`
	ArchiveUseSSL    bool   `env:"ARCHIVE_USE_SSL" envDefault:"false"`
	ArchiveBucket    string `env:"ARCHIVE_BUCKET" envDefault:"movie-reports" validate:"required_with=ArchiveEndpoint"`
	ArchivePrefix    string `env:"ARCHIVE_PREFIX" envDefault:"runs"`

	// Run notifications, enabled when NOTIFY_AMQP_URL is set
	NotifyAMQPURL  string `env:"NOTIFY_AMQP_URL"`
	NotifyExchange string `env:"NOTIFY_EXCHANGE" envDefault:"movie_pipeline" validate:"required_with=NotifyAMQPURL"`

	Log logger.LogConfig
}

// ArchiveEnabled reports whether exported reports are uploaded.
func (c *Configuration) ArchiveEnabled() bool { return c.ArchiveEndpoint != "" }

// NotifyEnabled reports whether run summaries are published.
func (c *Configuration) NotifyEnabled() bool { return c.NotifyAMQPURL != "" }

var validate = validator.New()

// Load reads the given .env files, then the environment. Without files it
// reads ./.env when present. Variables already set in the environment win.
func Load(files ...string) (*Configuration, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("failed to load env files %v: %w", files, err)
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to parse log config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
