package recursivebuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/globalindex"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestAnalyzeNominatesLargeSubdirAsChild(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 60; i++ {
		writeFile(t, filepath.Join(root, "big", fmt.Sprintf("f%02d.txt", i)), 10)
	}
	writeFile(t, filepath.Join(root, "loose.txt"), 10)

	cfg := DefaultConfig()
	cfg.MinFilesForChild = 50
	b := New(cfg)

	proposal, err := b.Analyze(root)
	require.NoError(t, err)
	require.Len(t, proposal.Children, 1)
	require.Equal(t, "big", proposal.Children[0].Name)
	require.GreaterOrEqual(t, proposal.Children[0].Stats.FileCount, 50)
	require.Equal(t, 1, proposal.Stats.FileCount) // only loose.txt remains at root
}

func TestAnalyzeCollapsesSmallSubdirIntoParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small", "a.txt"), 10)
	writeFile(t, filepath.Join(root, "small", "b.txt"), 10)

	b := New(DefaultConfig())
	proposal, err := b.Analyze(root)
	require.NoError(t, err)
	require.Empty(t, proposal.Children)
	require.Equal(t, 2, proposal.Stats.FileCount)
}

func TestAnalyzeSkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 60; i++ {
		writeFile(t, filepath.Join(root, "node_modules", "pkg", fmt.Sprintf("f%02d.txt", i)), 10)
	}
	writeFile(t, filepath.Join(root, "index.txt"), 10)

	b := New(DefaultConfig())
	proposal, err := b.Analyze(root)
	require.NoError(t, err)
	require.Empty(t, proposal.Children)
	require.Equal(t, 1, proposal.Stats.FileCount)
}

func TestBuildMaterializesNominatedChildWithoutDuplication(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 60; i++ {
		writeFile(t, filepath.Join(root, "docs", fmt.Sprintf("note%02d.txt", i)), 10)
	}
	writeFile(t, filepath.Join(root, "readme.txt"), 10)

	cfg := DefaultConfig()
	b := New(cfg)

	proposal, err := b.Analyze(root)
	require.NoError(t, err)

	outputDir := t.TempDir()
	results, err := b.Build(context.Background(), root, outputDir, proposal, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		_, statErr := os.Stat(res.ArchivePath)
		require.NoError(t, statErr)
		reader, openErr := container.Open(res.ArchivePath)
		require.NoError(t, openErr)
		reader.Close()
	}
}

func TestBuildMasterWritesHeaderOnlyContainer(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)

	b := New(DefaultConfig())
	proposal, err := b.Analyze(root)
	require.NoError(t, err)

	outputDir := t.TempDir()
	results, err := b.Build(context.Background(), root, outputDir, proposal, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	idx := globalindex.New()
	masterPath := filepath.Join(outputDir, "master.cxp")
	require.NoError(t, BuildMaster(context.Background(), masterPath, results, idx))

	reader, err := container.Open(masterPath)
	require.NoError(t, err)
	defer reader.Close()
}

func TestDetectProjectPatternFindsGoModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), 10)

	kind, ignore := DetectProjectPattern(root)
	require.Equal(t, ProjectGo, kind)
	require.Contains(t, ignore, "vendor")
}

func TestDetectProjectPatternDefaultsToGeneric(t *testing.T) {
	root := t.TempDir()
	kind, ignore := DetectProjectPattern(root)
	require.Equal(t, ProjectGeneric, kind)
	require.Empty(t, ignore)
}
