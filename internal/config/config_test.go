package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "lighton", cfg.Pipeline.DefaultEngine)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.RetryBackoff())
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.DocumentTimeout())
	assert.Equal(t, int64(20<<20), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, 50, cfg.Limits.MaxPDFPages)
	assert.Equal(t, 10000, cfg.Limits.MaxImageDimension)
	assert.Equal(t, 72*time.Hour, cfg.Storage.Retention())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagelift.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"

[pipeline]
default_engine = "tesseract"
workers = 8

[engines.lighton]
base_url = "http://vllm.internal:8000/v1"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "tesseract", cfg.Pipeline.DefaultEngine)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "http://vllm.internal:8000/v1", cfg.Engines.Lighton.BaseURL)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, int64(20<<20), cfg.Limits.MaxUploadBytes)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagelift.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"
`), 0o600))

	t.Setenv("PAGELIFT_ADDR", ":7070")
	t.Setenv("PAGELIFT_WORKERS", "2")
	t.Setenv("PAGELIFT_LIGHTON_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, "secret", cfg.Engines.Lighton.APIKey)
}

func TestEnvIgnoresInvalidInt(t *testing.T) {
	t.Setenv("PAGELIFT_WORKERS", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.toml")
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
