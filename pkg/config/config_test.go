package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8734, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, []string{"./rules"}, cfg.Rules.Directories)
	assert.NotEmpty(t, cfg.Languages.Enabled)
	assert.Contains(t, cfg.Languages.Enabled, "go")
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
server:
  port: 9000
  host: "0.0.0.0"

rules:
  directories:
    - "./my-rules"
  max_concurrent: 4

cache:
  max_size: 1048576
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"./my-rules"}, cfg.Rules.Directories)
	assert.Equal(t, 4, cfg.Rules.MaxConcurrent)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxSize)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("STRUCTGREP_SERVER_PORT", "9090")
	t.Setenv("STRUCTGREP_RULES_MAX_CONCURRENT", "6")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Rules.MaxConcurrent)
}

func TestLoadConfigParsesHumanCacheSize(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "human-size-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString("cache:\n  max_size_human: \"256MB\"\n")
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)
	assert.Equal(t, int64(256000000), cfg.Cache.MaxSize)
}

func TestLoadConfigRejectsBadCacheSize(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "bad-size-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString("cache:\n  max_size_human: \"not-a-size\"\n")
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.Error(t, loadErr)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, loadErr, config.ErrInvalidSizeFormat)
}

func TestValidateConfigRejectsBadPort(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "bad-port-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString("server:\n  port: 70000\n")
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.Error(t, loadErr)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, loadErr, config.ErrInvalidPort)
}

func TestValidateConfigRejectsNoLanguages(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "no-langs-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString("languages:\n  enabled: []\n")
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.Error(t, loadErr)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, loadErr, config.ErrNoLanguages)
}

func TestTimeDurationParsing(t *testing.T) {
	t.Parallel()

	configContent := `
server:
  read_timeout: "15s"
  write_timeout: "45s"
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-duration-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
}
