// Package chunkstore provides the in-memory, add-only, deduplicating
// hash→chunk map, grounded on the LRU-backed dedup map in
// other_examples' go-delta chunkstore but simplified to the spec's add-only
// contract: the archive Writer owns the store exclusively for the lifetime
// of one build, so there is no eviction. Store still guards its map and
// counters with a mutex.
package chunkstore

import (
	"sync"

	"github.com/cxparchive/cxp/internal/chunker"
)

// Stats are the running counters spec §3/§4.4 requires.
type Stats struct {
	TotalSeen        int
	Unique           int
	TotalBytes       int64
	DeduplicatedBytes int64
	DuplicatesFound  int
}

// DedupSavingsPercent is (total-dedup)/total*100, where dedup is
// DeduplicatedBytes (the bytes of unique chunks only); 0 when TotalBytes is 0.
func (s Stats) DedupSavingsPercent() float64 {
	if s.TotalBytes == 0 {
		return 0
	}
	return float64(s.TotalBytes-s.DeduplicatedBytes) / float64(s.TotalBytes) * 100
}

// Store is a hash→chunk map with dedup counters. Safe for concurrent use,
// though spec §5 notes it is single-owner in practice (never shared across
// threads once a Writer or Reader holds it).
type Store struct {
	mu     sync.RWMutex
	chunks map[string]chunker.Chunk
	stats  Stats
}

// New creates an empty Store.
func New() *Store {
	return &Store{chunks: make(map[string]chunker.Chunk)}
}

// Add inserts c if its hash is new, returning true iff it was newly added.
// A duplicate leaves the existing chunk untouched and only bumps counters.
func (s *Store) Add(c chunker.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalSeen++
	s.stats.TotalBytes += int64(c.Length)

	if _, exists := s.chunks[c.Hash]; exists {
		s.stats.DuplicatesFound++
		return false
	}

	s.chunks[c.Hash] = c
	s.stats.Unique++
	s.stats.DeduplicatedBytes += int64(c.Length)
	return true
}

// AddMany adds each chunk in order and returns ChunkRefs in the same input
// order (regardless of which were deduplicated), preserving per-file
// chunk ordering per spec §4.4.
func (s *Store) AddMany(chunks []chunker.Chunk) []ChunkRef {
	refs := make([]ChunkRef, len(chunks))
	for i, c := range chunks {
		s.Add(c)
		refs[i] = ChunkRef{Hash: c.Hash, OffsetInFile: c.Offset, Length: c.Length}
	}
	return refs
}

// Get returns the chunk for hash, if present.
func (s *Store) Get(hash string) (chunker.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[hash]
	return c, ok
}

// Contains reports whether hash is already stored.
func (s *Store) Contains(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[hash]
	return ok
}

// Len returns the number of unique chunks stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Stats returns a snapshot of the running counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Iter calls fn for every stored chunk. Iteration order is the Go map's:
// unspecified, and it may differ from one call to the next.
func (s *Store) Iter(fn func(chunker.Chunk)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chunks {
		fn(c)
	}
}

// IntoChunks drains the store into a slice, for handoff to the Writer's
// compression stage.
func (s *Store) IntoChunks() []chunker.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chunker.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	return out
}

// ChunkRef identifies a chunk within a FileEntry's ordered sequence.
type ChunkRef struct {
	Hash         string `msgpack:"hash"`
	OffsetInFile int    `msgpack:"offset_in_file"`
	Length       int    `msgpack:"length"`
}
