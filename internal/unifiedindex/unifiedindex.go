// Package unifiedindex implements the Unified Index: a VectorIndex
// wrapped with per-id `{text|image}` metadata so a single cross-modal space
// can be searched with type filtering.
package unifiedindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/vectorindex"
)

// Kind tags whether an entry's vector came from text or image content.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Entry is the tagged metadata attached to one vector id.
type Entry struct {
	Kind     Kind   `json:"kind"`
	ChunkID  string `json:"chunk_id,omitempty"`
	FilePath string `json:"file_path"`
}

// Result is one ranked, metadata-attached neighbor.
type Result struct {
	ID       uint64
	Distance float32
	Meta     Entry
}

// oversampleFactor governs how many extra candidates search_text_only /
// search_images_only fetch before filtering down to k.
const oversampleFactor = 3

// Index wraps a vectorindex.Index with an id→Entry side table.
type Index struct {
	inner *vectorindex.Index
	meta  map[uint64]Entry
}

// New wraps inner with an empty metadata table.
func New(inner *vectorindex.Index) *Index {
	return &Index{inner: inner, meta: make(map[uint64]Entry)}
}

// AddText inserts vector at id with Text metadata, atomically recording both
// the vector and its metadata.
func (idx *Index) AddText(id uint64, vector []float32, chunkID, filePath string) error {
	if err := idx.inner.Add(id, vector); err != nil {
		return err
	}
	idx.meta[id] = Entry{Kind: KindText, ChunkID: chunkID, FilePath: filePath}
	return nil
}

// AddImage inserts vector at id with Image metadata.
func (idx *Index) AddImage(id uint64, vector []float32, filePath string) error {
	if err := idx.inner.Add(id, vector); err != nil {
		return err
	}
	idx.meta[id] = Entry{Kind: KindImage, FilePath: filePath}
	return nil
}

func (idx *Index) attach(results []vectorindex.Result) ([]Result, error) {
	out := make([]Result, len(results))
	for i, r := range results {
		meta, ok := idx.meta[r.ID]
		if !ok {
			return nil, cxperr.New(cxperr.ErrCodeMalformedArchive,
				"vector id has no unified-index metadata", nil)
		}
		out[i] = Result{ID: r.ID, Distance: r.Distance, Meta: meta}
	}
	return out, nil
}

// Search returns k neighbors of query with metadata attached. It is an
// invariant violation for any returned id to lack metadata.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	results, err := idx.inner.Search(query, k)
	if err != nil {
		return nil, err
	}
	return idx.attach(results)
}

func (idx *Index) searchFiltered(query []float32, k int, want Kind) ([]Result, error) {
	results, err := idx.inner.Search(query, k*oversampleFactor)
	if err != nil {
		return nil, err
	}
	attached, err := idx.attach(results)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, k)
	for _, r := range attached {
		if r.Meta.Kind == want {
			out = append(out, r)
			if len(out) == k {
				break
			}
		}
	}
	return out, nil
}

// SearchTextOnly oversamples the inner index by 3x then filters to text
// results before truncating to k.
func (idx *Index) SearchTextOnly(query []float32, k int) ([]Result, error) {
	return idx.searchFiltered(query, k, KindText)
}

// SearchImagesOnly oversamples the inner index by 3x then filters to image
// results before truncating to k.
func (idx *Index) SearchImagesOnly(query []float32, k int) ([]Result, error) {
	return idx.searchFiltered(query, k, KindImage)
}

// Filter is the user-facing search_multimodal selector; anything other than
// "text" or "image" means "all".
type Filter string

const (
	FilterText  Filter = "text"
	FilterImage Filter = "image"
	FilterAll   Filter = "all"
)

// SearchMultimodal dispatches to the filtered or unfiltered search method
// matching filter.
func (idx *Index) SearchMultimodal(query []float32, k int, filter Filter) ([]Result, error) {
	switch filter {
	case FilterText:
		return idx.SearchTextOnly(query, k)
	case FilterImage:
		return idx.SearchImagesOnly(query, k)
	default:
		return idx.Search(query, k)
	}
}

// Meta returns the metadata recorded for id, if any.
func (idx *Index) Meta(id uint64) (Entry, bool) {
	e, ok := idx.meta[id]
	return e, ok
}

// Len reports how many metadata entries are tracked.
func (idx *Index) Len() int {
	return len(idx.meta)
}

// Save writes path+".index" (the inner VectorIndex blob, which itself writes
// path+".index.meta") and path+".meta" (the id→Entry table, JSON-encoded).
func (idx *Index) Save(path string) error {
	if err := idx.inner.Save(path + ".index"); err != nil {
		return err
	}
	return idx.saveMeta(path + ".meta")
}

func (idx *Index) saveMeta(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	data, err := json.Marshal(idx.meta)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return nil
}

// Load reconstructs a unified Index from files written by Save.
func Load(path string) (*Index, error) {
	inner, err := vectorindex.Load(path + ".index")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	meta := make(map[uint64]Entry)
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}

	return &Index{inner: inner, meta: meta}, nil
}

// SortedIDs returns every id with metadata, sorted ascending. Used by tests
// to verify monotonic id assignment.
func (idx *Index) SortedIDs() []uint64 {
	out := make([]uint64, 0, len(idx.meta))
	for id := range idx.meta {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
