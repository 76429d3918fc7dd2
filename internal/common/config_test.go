package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", " SQLite ")
	t.Setenv("EXTRACTION_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.Extraction.Provider)
	assert.Equal(t, 3, cfg.Extraction.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Extraction.InitialDelay)
	assert.Equal(t, int64(25), cfg.Server.MaxUploadMB)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadDuration(t *testing.T) {
	t.Setenv("EXTRACTION_INITIAL_DELAY", "soon")
	_, err := LoadConfig()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/db"},
			Server:     ServerConfig{MaxUploadMB: 10},
			Extraction: ExtractionConfig{Provider: "gemini", GeminiAPIKey: "k", MaxAttempts: 3},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.Database.DSN = "" },
		"unknown driver":       func(c *Config) { c.Database.Driver = "mysql" },
		"missing gemini key":   func(c *Config) { c.Extraction.GeminiAPIKey = "" },
		"unknown provider":     func(c *Config) { c.Extraction.Provider = "other" },
		"zero attempts":        func(c *Config) { c.Extraction.MaxAttempts = 0 },
		"negative delay":       func(c *Config) { c.Extraction.InitialDelay = -time.Second },
		"zero upload limit":    func(c *Config) { c.Server.MaxUploadMB = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			err := c.Validate()
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
