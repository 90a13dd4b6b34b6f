package container

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/embedfn"
)

func writeSourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestScanRetainsTextFilesSorted(t *testing.T) {
	dir := writeSourceTree(t, map[string]string{
		"b.go":          "package b",
		"a.py":          "print(1)",
		"ignored.bin":   "\x00\x01",
		"nested/c.json": "{}",
	})

	w := New(dir)
	retained, err := w.Scan()
	require.NoError(t, err)
	require.Equal(t, []string{"a.py", "b.go", "nested/c.json"}, retained)
	require.Equal(t, StateScanned, w.state)
}

func TestProcessPopulatesFileMapAndStats(t *testing.T) {
	dir := writeSourceTree(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package a\n",
	})

	w := New(dir)
	retained, err := w.Scan()
	require.NoError(t, err)
	require.NoError(t, w.Process(retained))

	require.Equal(t, StateProcessed, w.state)
	require.Equal(t, 2, w.fileMap.Len())
	require.Equal(t, 2, w.manifest.Stats.TotalFiles)
	// Both files are byte-identical, so they share one unique chunk.
	require.Equal(t, 1, w.manifest.Stats.UniqueChunks)
}

func TestOperationsRejectOutOfOrderCalls(t *testing.T) {
	dir := writeSourceTree(t, map[string]string{"a.go": "package a"})
	w := New(dir)

	err := w.Process(nil)
	require.Error(t, err)
	require.Equal(t, cxperr.ErrCodeMalformedArchive, cxperr.Code(err))
}

func TestBuildWithoutEmbeddingsWritesCoreEntries(t *testing.T) {
	dir := writeSourceTree(t, map[string]string{"a.go": "package a\n"})
	outPath := filepath.Join(t.TempDir(), "out.cxp")

	w := New(dir)
	retained, err := w.Scan()
	require.NoError(t, err)
	require.NoError(t, w.Process(retained))
	require.NoError(t, w.Build(context.Background(), outPath))
	require.Equal(t, StateSealed, w.state)

	zr, err := zip.OpenReader(outPath)
	require.NoError(t, err)
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		require.Equal(t, zip.Store, f.Method)
	}
	require.True(t, names[entryManifest])
	require.True(t, names[entryFileMap])
	require.False(t, names[entryEmbeddingsBinary])
}

func TestBuildWithEmbeddingsWritesUnifiedIndexEntries(t *testing.T) {
	dir := writeSourceTree(t, map[string]string{
		"a.go": "package main\n\nfunc main() {}\n",
		"b.go": "package main\n\nfunc other() {}\n",
	})
	outPath := filepath.Join(t.TempDir(), "out.cxp")

	w := New(dir).WithEmbeddings(embedfn.NewStaticTextEncoder())
	retained, err := w.Scan()
	require.NoError(t, err)
	require.NoError(t, w.Process(retained))
	require.NoError(t, w.Build(context.Background(), outPath))

	zr, err := zip.OpenReader(outPath)
	require.NoError(t, err)
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	require.True(t, names[entryEmbeddingsBinary])
	require.True(t, names[entryEmbeddingsInt8])
	require.True(t, names[entryUnifiedIndex])
	require.True(t, names[entryUnifiedIndexMeta])
	require.True(t, names[entryUnifiedMeta])

	require.NotNil(t, w.manifest.EmbeddingModel)
	require.Equal(t, embedfn.StaticDimensions, *w.manifest.EmbeddingDim)
}
