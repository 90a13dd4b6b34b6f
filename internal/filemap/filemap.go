// Package filemap implements FileMap: the path→FileEntry mapping the
// Writer populates during process() and the Reader uses to locate and
// reconstruct file content from chunk references.
package filemap

import (
	"fmt"
	"sort"

	"github.com/cxparchive/cxp/internal/chunkstore"
	"github.com/cxparchive/cxp/internal/cxperr"
)

// FileEntry describes one archived file: its path, extension, declared size,
// and the ordered chunk references that reconstruct it.
// Invariant: sum(Chunks[i].Length) == Size.
type FileEntry struct {
	Path      string                `msgpack:"path"`
	Extension string                `msgpack:"extension"`
	Size      int64                 `msgpack:"size"`
	Chunks    []chunkstore.ChunkRef `msgpack:"chunks"`
	IsImage   bool                  `msgpack:"is_image"`
}

// Validate checks the FileEntry's size invariant.
func (e FileEntry) Validate() error {
	var total int64
	for _, c := range e.Chunks {
		total += int64(c.Length)
	}
	if total != e.Size {
		return cxperr.New(cxperr.ErrCodeReconstructSize,
			fmt.Sprintf("file %q: chunk lengths sum to %d, want %d", e.Path, total, e.Size), nil)
	}
	return nil
}

// FileMap is path→FileEntry, insertion-ordered so manifest listings and
// container writes are deterministic.
type FileMap struct {
	ByPath map[string]FileEntry `msgpack:"by_path"`
	Order  []string             `msgpack:"order"`
}

// New returns an empty FileMap.
func New() *FileMap {
	return &FileMap{ByPath: make(map[string]FileEntry)}
}

// Insert adds or replaces the entry for path. Insertion only happens in the
// Writer during process().
func (m *FileMap) Insert(entry FileEntry) {
	if m.ByPath == nil {
		m.ByPath = make(map[string]FileEntry)
	}
	if _, exists := m.ByPath[entry.Path]; !exists {
		m.Order = append(m.Order, entry.Path)
	}
	m.ByPath[entry.Path] = entry
}

// Get returns the entry for path, if present.
func (m *FileMap) Get(path string) (FileEntry, bool) {
	e, ok := m.ByPath[path]
	return e, ok
}

// Len returns the number of files tracked.
func (m *FileMap) Len() int {
	return len(m.ByPath)
}

// Paths returns all paths in insertion order.
func (m *FileMap) Paths() []string {
	out := make([]string, len(m.Order))
	copy(out, m.Order)
	return out
}

// SortedPaths returns all paths in lexical order, used for deterministic
// listings independent of insertion history.
func (m *FileMap) SortedPaths() []string {
	out := m.Paths()
	sort.Strings(out)
	return out
}

// FindByChunkHash returns the path of the first file (in insertion order)
// referencing a chunk with the given hash, mapping a chunk back to its
// owning file. Each lookup is a linear scan over every entry's chunk list.
func (m *FileMap) FindByChunkHash(hash string) (string, bool) {
	for _, path := range m.Order {
		entry := m.ByPath[path]
		for _, c := range entry.Chunks {
			if c.Hash == hash {
				return path, true
			}
		}
	}
	return "", false
}
