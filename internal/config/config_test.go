package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/odfcore/internal/config"
)

func TestLoadConfig_NoFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte(""), 0o600))

	cfg, err := config.LoadConfig(emptyPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ".odfcore", cfg.Workspace.Root)
	assert.Equal(t, ".odfcore/datasets", cfg.Workspace.DatasetsDir)
	assert.Equal(t, ".odfcore/data", cfg.Workspace.DataDir)
	assert.Equal(t, ".odfcore/checkpoints", cfg.Workspace.CheckpointsDir)
	assert.Equal(t, ".odfcore/cache", cfg.Workspace.CacheDir)
	assert.Equal(t, 30*time.Second, cfg.Engine.ReadinessTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)
	assert.InDelta(t, 1.0, cfg.Observability.SampleRatio, 0.001)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "odfcore.yaml")
	content := `workspace:
  root: /srv/odfcore
engine:
  bin_dir: /opt/engines
  readiness_timeout: 45s
logging:
  level: debug
  format: text
observability:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  sample_ratio: 0.5
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/odfcore", cfg.Workspace.Root)
	assert.Equal(t, "/srv/odfcore/datasets", cfg.Workspace.DatasetsDir)
	assert.Equal(t, "/opt/engines", cfg.Engine.BinDir)
	assert.Equal(t, 45*time.Second, cfg.Engine.ReadinessTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.InDelta(t, 0.5, cfg.Observability.SampleRatio, 0.001)
}

func TestLoadConfig_ExplicitVolumeDirs_OverrideDerivedPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "odfcore.yaml")
	content := `workspace:
  root: /srv/odfcore
  data_dir: /mnt/bulk/data
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/bulk/data", cfg.Workspace.DataDir)
	assert.Equal(t, "/srv/odfcore/datasets", cfg.Workspace.DatasetsDir)
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	content := `workspace:
  root: [invalid yaml
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte(""), 0o600))

	t.Setenv("ODFCORE_WORKSPACE_ROOT", "/tmp/ws")
	t.Setenv("ODFCORE_LOGGING_LEVEL", "warn")

	cfg, err := config.LoadConfig(emptyPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ws", cfg.Workspace.Root)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_ZeroReadinessTimeout_ReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "odfcore.yaml")
	content := `engine:
  readiness_timeout: 0s
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, config.ErrInvalidReadinessTimeout)
}

func TestLoadConfig_ExplicitPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("/nonexistent/path/odfcore.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}
