package filemap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/chunkstore"
)

func TestValidateAcceptsMatchingSize(t *testing.T) {
	e := FileEntry{
		Path: "a.txt",
		Size: 10,
		Chunks: []chunkstore.ChunkRef{
			{Hash: "h1", Length: 4},
			{Hash: "h2", Length: 6},
		},
	}
	require.NoError(t, e.Validate())
}

func TestValidateRejectsMismatchedSize(t *testing.T) {
	e := FileEntry{
		Path:   "a.txt",
		Size:   10,
		Chunks: []chunkstore.ChunkRef{{Hash: "h1", Length: 4}},
	}
	require.Error(t, e.Validate())
}

func TestInsertIsOrderedAndIdempotentOnOrder(t *testing.T) {
	m := New()
	m.Insert(FileEntry{Path: "b.txt", Size: 0})
	m.Insert(FileEntry{Path: "a.txt", Size: 0})
	m.Insert(FileEntry{Path: "b.txt", Size: 5})

	require.Equal(t, 2, m.Len())
	require.Equal(t, []string{"b.txt", "a.txt"}, m.Paths())
	require.Equal(t, []string{"a.txt", "b.txt"}, m.SortedPaths())

	got, ok := m.Get("b.txt")
	require.True(t, ok)
	require.Equal(t, int64(5), got.Size)
}

func TestFindByChunkHash(t *testing.T) {
	m := New()
	m.Insert(FileEntry{Path: "x.txt", Chunks: []chunkstore.ChunkRef{{Hash: "aaa"}, {Hash: "bbb"}}})
	m.Insert(FileEntry{Path: "y.txt", Chunks: []chunkstore.ChunkRef{{Hash: "ccc"}}})

	path, ok := m.FindByChunkHash("bbb")
	require.True(t, ok)
	require.Equal(t, "x.txt", path)

	_, ok = m.FindByChunkHash("zzz")
	require.False(t, ok)
}
