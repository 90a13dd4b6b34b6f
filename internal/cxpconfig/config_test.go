package cxpconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	cfg := Default()
	require.Equal(t, 2048, cfg.Chunker.MinSize)
	require.Equal(t, 4096, cfg.Chunker.TargetSize)
	require.Equal(t, 8192, cfg.Chunker.MaxSize)
	require.Equal(t, 3, cfg.Compress.Level)
	require.Equal(t, int64(500*1024*1024), cfg.Manager.MaxMemoryBytes)
	require.Equal(t, 50, cfg.Manager.MaxCachedArchives)
	require.True(t, cfg.Manager.PreloadHot)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cxp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  target_size: 6000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Chunker.TargetSize)
	require.Equal(t, 2048, cfg.Chunker.MinSize)
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cxp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  target_size: 6000\n"), 0o644))

	t.Setenv("CXP_CHUNK_TARGET_SIZE", "5000")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Chunker.TargetSize)
}
