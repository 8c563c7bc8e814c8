package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "log", cfg.Engine.LogDir)
	assert.Equal(t, 10_000_000, cfg.Engine.IndexMaxItems)
	assert.Equal(t, SizeBytes(1_024_000_000), cfg.Engine.SegmentMaxBytes)
	assert.Equal(t, ":9092", cfg.Frontend.Address)
	assert.Equal(t, 64, cfg.Frontend.MaxRequestsBurst)
	assert.Equal(t, ":9093", cfg.Admin.Address)
	assert.Equal(t, 100, cfg.Retention.KeepSegments)
}

func TestLoadOverlaysDefaultsWithFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  log_dir: /data/log\n  segment_max_bytes: 64MiB\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/log", cfg.Engine.LogDir)
	assert.Equal(t, SizeBytes(64*1024*1024), cfg.Engine.SegmentMaxBytes)
	// Untouched fields keep their documented defaults.
	assert.Equal(t, ":9092", cfg.Frontend.Address)
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  log_dir: /from/file\n"), 0o644))

	fileCfg, err := Load(path)
	require.NoError(t, err)
	envCfg := Default()

	flags := Flags{LogDir: "/from/flag", Config: path, Set: map[string]bool{"log-dir": true}}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &envCfg, EnvResult{})
	require.NoError(t, err)
	assert.Equal(t, "flags", res.Source)
	assert.Equal(t, "/from/flag", res.Config.Engine.LogDir)

	flags2 := Flags{Config: path, Set: map[string]bool{}}
	res2, err := LoadEffectiveConfig(flags2, fileCfg, true, &envCfg, EnvResult{})
	require.NoError(t, err)
	assert.Equal(t, "config", res2.Source)
	assert.Equal(t, "/from/file", res2.Config.Engine.LogDir)
}

func TestLoadEffectiveConfigMissingExplicitConfigErrors(t *testing.T) {
	envCfg := Default()
	flags := Flags{Config: "/does/not/exist.yaml", Set: map[string]bool{"config": true}}
	_, err := LoadEffectiveConfig(flags, nil, false, &envCfg, EnvResult{})
	assert.Error(t, err)
}
