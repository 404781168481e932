package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadFileEmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadFileParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[defaults]
bwlimit = "10M"
work_dir = "/stage"
attempts = 4
retry_delay = "2s"

[s3]
endpoint = "localhost:9000"
access_key = "ak"
secret_key = "sk"
use_ssl = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Defaults.BWLimit)
	assert.Equal(t, "10M", *cfg.Defaults.BWLimit)
	require.NotNil(t, cfg.Defaults.WorkDir)
	assert.Equal(t, "/stage", *cfg.Defaults.WorkDir)
	require.NotNil(t, cfg.Defaults.Attempts)
	assert.Equal(t, 4, *cfg.Defaults.Attempts)
	require.NotNil(t, cfg.Defaults.RetryDelay)
	assert.Equal(t, "2s", *cfg.Defaults.RetryDelay)

	assert.Equal(t, "localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, "ak", cfg.S3.AccessKey)
	assert.Equal(t, "sk", cfg.S3.SecretKey)
	assert.True(t, cfg.S3.UseSSL)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom")
	assert.Equal(t, filepath.Join("/custom", "ferry", "config.toml"), Path())
}
