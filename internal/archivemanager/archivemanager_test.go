package archivemanager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/archiveref"
	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/tier"
)

func buildArchive(t *testing.T, name, content string) string {
	t.Helper()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte(content), 0o644))

	w := container.New(srcDir)
	retained, err := w.Scan()
	require.NoError(t, err)
	require.NoError(t, w.Process(retained))

	outPath := filepath.Join(t.TempDir(), name+".cxp")
	require.NoError(t, w.Build(context.Background(), outPath))
	return outPath
}

func TestGetCachesAndRegisterChildPersistsRef(t *testing.T) {
	storageRoot := t.TempDir()
	archivePath := buildArchive(t, "child1", "hello world")

	mgr := New(storageRoot, DefaultConfig())
	ref := archiveref.New("id-1", "child1", archiveref.External(archivePath), archiveref.Meta{})
	require.NoError(t, mgr.RegisterChild(ref))

	reader, err := mgr.Get([]string{"child1"})
	require.NoError(t, err)
	require.NotNil(t, reader)
	require.Equal(t, 1, mgr.CachedCount())
	require.Greater(t, mgr.CurrentMemory(), int64(0))

	// Second lookup should hit the cache, not grow memory further.
	mem1 := mgr.CurrentMemory()
	_, err = mgr.Get([]string{"child1"})
	require.NoError(t, err)
	require.Equal(t, mem1, mgr.CurrentMemory())

	// A fresh Manager re-initialized from disk discovers the persisted ref.
	mgr2 := New(storageRoot, DefaultConfig())
	require.NoError(t, mgr2.Init())
	_, err = mgr2.Get([]string{"child1"})
	require.NoError(t, err)
}

func TestEvictionNeverEvictsHotTier(t *testing.T) {
	storageRoot := t.TempDir()
	// The cached-archive budget is the one exceeded here: a memory budget
	// smaller than one archive makes the first Get fail on its own.
	cfg := Config{MaxMemoryBytes: DefaultConfig().MaxMemoryBytes, MaxCachedArchives: 1, PreloadHot: false}
	mgr := New(storageRoot, cfg)

	hotPath := buildArchive(t, "hot", "hot content")
	// Get touches the ref and recomputes its tier, so it must be recently
	// updated to stay Hot.
	hotRef := archiveref.New("hot-id", "hot", archiveref.External(hotPath), archiveref.Meta{UpdatedAt: time.Now()})
	hotRef.Tier = tier.Hot
	require.NoError(t, mgr.RegisterChild(hotRef))

	_, err := mgr.Get([]string{"hot"})
	require.NoError(t, err)
	require.Equal(t, 1, mgr.CachedCount())

	warmPath := buildArchive(t, "warm", "warm content")
	warmRef := archiveref.New("warm-id", "warm", archiveref.External(warmPath), archiveref.Meta{})
	warmRef.Tier = tier.Warm
	require.NoError(t, mgr.RegisterChild(warmRef))

	_, err = mgr.Get([]string{"warm"})
	require.NoError(t, err)

	// Hot must still be resident; eviction should have left it alone even
	// though the budget is exceeded.
	require.Contains(t, mgr.cache, "hot")
}

func TestIndexArchiveFeedsGlobalSearch(t *testing.T) {
	storageRoot := t.TempDir()
	mgr := New(storageRoot, DefaultConfig())

	archivePath := buildArchive(t, "searchable", "hello world")
	reader, err := container.Open(archivePath)
	require.NoError(t, err)

	mgr.IndexArchive([]string{"root", "searchable"}, "searchable-id", reader)

	results := mgr.Search("a.txt", 10)
	require.NotEmpty(t, results)
}
