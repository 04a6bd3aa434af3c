// Package config defines the global configuration structure for the BloomWatch
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"bloomwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the BloomWatch platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"bloomwatch-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Models   ModelsConfig
	Data     DataConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownGrace      time.Duration `envconfig:"SERVER_SHUTDOWN_GRACE" default:"10s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
/// The URL is optional: without it the service runs stateless and prediction
// reports are not persisted.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// ModelsConfig holds the location of the trained model artifacts.
type ModelsConfig struct {
	Dir string `envconfig:"MODELS_DIR" default:"./models" validate:"required"`
}

// DataConfig holds the upstream earth-observation data source settings.
type DataConfig struct {
	PowerBaseURL      string        `envconfig:"POWER_BASE_URL" default:"https://power.larc.nasa.gov" validate:"required,url"`
	VegetationBaseURL string        `envconfig:"VEGETATION_BASE_URL" default:"https://appeears.earthdatacloud.nasa.gov" validate:"required,url"`
	EarthdataToken    SecretString  `envconfig:"EARTHDATA_TOKEN"`
	RequestTimeout    time.Duration `envconfig:"DATA_REQUEST_TIMEOUT" default:"30s"`
	HistoryDays       int           `envconfig:"DATA_HISTORY_DAYS" default:"90" validate:"min=30,max=365"`

	// Resilience Tuning
	MaxRetries      int           `envconfig:"DATA_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
	RetryMinWait    time.Duration `envconfig:"DATA_RETRY_MIN_WAIT" default:"500ms"`
	RetryMaxWait    time.Duration `envconfig:"DATA_RETRY_MAX_WAIT" default:"10s"`
	BreakerCooldown time.Duration `envconfig:"DATA_BREAKER_COOLDOWN" default:"30s"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
