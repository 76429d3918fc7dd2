package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
)

func sqliteConfig(t *testing.T) *common.Config {
	t.Helper()
	return &common.Config{
		Database: common.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         filepath.Join(t.TempDir(), "app.db"),
			AutoMigrate: true,
		},
		Extraction: common.ExtractionConfig{
			Provider:     "openai",
			OpenAIAPIKey: "sk-test",
			OpenAIURL:    "http://127.0.0.1:1",
			OpenAIModel:  "gpt-4o-mini",
			MaxAttempts:  1,
		},
		Artifacts: common.ArtifactConfig{Dir: t.TempDir()},
	}
}

func TestBootstrap_SQLite(t *testing.T) {
	ctx := context.Background()
	deps, err := Bootstrap(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer deps.Close()

	assert.Equal(t, "openai", deps.Service.Name())

	_, err = deps.Receipts.Create(ctx, entity.EntityBundle{}.WithDefaults())
	require.NoError(t, err)
	n, err := deps.Receipts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, err := deps.Exporter.ExportXLSX(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestNewExtractionService_Unknown(t *testing.T) {
	_, err := NewExtractionService(context.Background(), common.ExtractionConfig{Provider: "claude"}, nil)
	assert.ErrorContains(t, err, "unsupported extraction provider")
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), common.DatabaseConfig{Driver: "mysql"}, nil)
	assert.Error(t, err)
}
