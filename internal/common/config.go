package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extraction ExtractionConfig
	Artifacts  ArtifactConfig
	Queue      QueueConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `envconfig:"DB_DRIVER" default:"postgres"`
	DSN              string        `envconfig:"DB_URL"`
	MaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns         int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime  time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime  time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	DialTimeout      time.Duration `envconfig:"DB_DIAL_TIMEOUT" default:"3s"`
	StatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"0s"`
	AutoMigrate      bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	MaxUploadMB     int64         `envconfig:"MAX_UPLOAD_MB" default:"25"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"3m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// ExtractionConfig selects and tunes the document-understanding service.
type ExtractionConfig struct {
	Provider     string        `envconfig:"EXTRACTION_PROVIDER" default:"gemini"`
	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	OpenAIAPIKey string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIURL    string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Temperature  float32       `envconfig:"EXTRACTION_TEMPERATURE" default:"0"`
	Timeout      time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"90s"`
	MaxAttempts  int           `envconfig:"EXTRACTION_MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `envconfig:"EXTRACTION_INITIAL_DELAY" default:"2s"`
}

// ArtifactConfig controls where uploads are staged while a run is in flight.
type ArtifactConfig struct {
	Dir string `envconfig:"ARTIFACT_DIR"`
}

// QueueConfig tunes the batch worker pool.
type QueueConfig struct {
	Workers    int           `envconfig:"QUEUE_WORKERS" default:"4"`
	Size       int           `envconfig:"QUEUE_SIZE" default:"256"`
	JobTimeout time.Duration `envconfig:"QUEUE_JOB_TIMEOUT" default:"5m"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// LoadConfig loads configuration from the environment, after merging an optional .env file.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	sections := []struct {
		name string
		spec any
	}{
		{"database", &cfg.Database},
		{"server", &cfg.Server},
		{"extraction", &cfg.Extraction},
		{"artifacts", &cfg.Artifacts},
		{"queue", &cfg.Queue},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.spec); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("load %s config", s.name), err)
		}
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Extraction.Provider = strings.ToLower(strings.TrimSpace(cfg.Extraction.Provider))
	return cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Extraction.Validate(); err != nil {
		return err
	}
	if c.Server.MaxUploadMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	return nil
}

// Validate checks the driver selection on its own, for commands that never extract.
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Driver), ErrInvalidInput)
	}
	return nil
}

// Validate checks the provider selection and the retry policy.
func (c ExtractionConfig) Validate() error {
	switch c.Provider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported EXTRACTION_PROVIDER %q", c.Provider), ErrInvalidInput)
	}
	if c.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.InitialDelay < 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_INITIAL_DELAY must not be negative", ErrInvalidInput)
	}
	return nil
}
