package chunkstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/chunker"
)

func mkChunk(data string, offset int) chunker.Chunk {
	return chunker.Chunk{
		Hash:   chunker.HashHex([]byte(data)),
		Bytes:  []byte(data),
		Offset: offset,
		Length: len(data),
	}
}

func TestAddDeduplicates(t *testing.T) {
	s := New()
	isNew1 := s.Add(mkChunk("hello", 0))
	isNew2 := s.Add(mkChunk("hello", 5))

	require.True(t, isNew1)
	require.False(t, isNew2)
	require.Equal(t, 1, s.Len())

	stats := s.Stats()
	require.Equal(t, 2, stats.TotalSeen)
	require.Equal(t, 1, stats.Unique)
	require.Equal(t, 1, stats.DuplicatesFound)
	require.Equal(t, stats.Unique+stats.DuplicatesFound, stats.TotalSeen)
	require.Greater(t, stats.DedupSavingsPercent(), 0.0)
}

func TestDedupSavingsPercentZeroWhenEmpty(t *testing.T) {
	s := New()
	require.Equal(t, 0.0, s.Stats().DedupSavingsPercent())
}

func TestAddManyPreservesOrder(t *testing.T) {
	s := New()
	chunks := []chunker.Chunk{mkChunk("a", 0), mkChunk("b", 1), mkChunk("a", 2)}
	refs := s.AddMany(chunks)

	require.Len(t, refs, 3)
	require.Equal(t, chunks[0].Hash, refs[0].Hash)
	require.Equal(t, chunks[1].Hash, refs[1].Hash)
	require.Equal(t, chunks[2].Hash, refs[2].Hash)
	require.Equal(t, 2, s.Len())
}

func TestContainsAndGet(t *testing.T) {
	s := New()
	c := mkChunk("hello", 0)
	s.Add(c)

	require.True(t, s.Contains(c.Hash))
	got, ok := s.Get(c.Hash)
	require.True(t, ok)
	require.Equal(t, c.Bytes, got.Bytes)

	_, ok = s.Get("deadbeef")
	require.False(t, ok)
}
