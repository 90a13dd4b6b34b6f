// Package vectorindex implements the Vector Index: an approximate
// nearest-neighbor index over hierarchical navigable small-world graphs
// (github.com/coder/hnsw), grounded on the teacher's HNSWStore
// (internal/store/hnsw.go). One metric is fixed at index creation; all four
// spec metrics (Hamming, Cosine, L2-squared, inner product) are served by
// the same graph type by supplying a metric-specific Distance function
//.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/quantize"
)

// Metric selects the distance function fixed at index creation.
type Metric string

const (
	MetricHamming      Metric = "hamming"
	MetricCosine       Metric = "cosine"
	MetricL2Squared    Metric = "l2_squared"
	MetricInnerProduct Metric = "inner_product"
)

func distanceFor(m Metric) hnsw.DistanceFunc {
	switch m {
	case MetricHamming:
		// Binary vectors are represented as 0.0/1.0-valued float32 slices so
		// a single graph type serves every metric; popcount(xor) becomes a
		// sum of absolute differences.
		return func(a, b []float32) float32 {
			var total float32
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			for i := 0; i < n; i++ {
				d := a[i] - b[i]
				if d < 0 {
					d = -d
				}
				total += d
			}
			return total
		}
	case MetricL2Squared:
		return func(a, b []float32) float32 { return quantize.L2Squared(a, b) }
	case MetricInnerProduct:
		return func(a, b []float32) float32 { return -quantize.InnerProduct(a, b) }
	case MetricCosine:
		fallthrough
	default:
		return hnsw.CosineDistance
	}
}

// Config fixes the index's dimensionality and metric at creation time.
//
// ExpansionAdd corresponds to spec §4.10's expansion_add (default 128): the
// candidate-list size used while inserting a node. coder/hnsw's Graph
// exposes only one ef parameter (EfSearch, used for both build and query
// graph traversal) rather than hnswlib's separate construction/search ef
// values, so ExpansionAdd is recorded on Config and persisted for callers
// that introspect it but has no separate graph field to drive — see
// DESIGN.md for the limitation this reflects.
type Config struct {
	Dimensions   int
	Metric       Metric
	M            int
	EfSearch     int
	ExpansionAdd int
}

// DefaultConfig returns the spec §4.10 tuning defaults: connectivity M=16,
// expansion_add=128, expansion_search=64 (grounded on the teacher's
// NewHNSWStore defaults, adjusted to the spec's expansion_search default).
func DefaultConfig(dimensions int, metric Metric) Config {
	return Config{Dimensions: dimensions, Metric: metric, M: 16, EfSearch: 64, ExpansionAdd: 128}
}

// Result is one ranked neighbor.
type Result struct {
	ID       uint64
	Distance float32
}

// persistedMeta is gob-encoded alongside the exported graph so Load can
// restore the metric/dimension contract without re-deriving it.
type persistedMeta struct {
	Config Config
}

// Index wraps a coder/hnsw graph keyed directly by the spec's u64 ids.
// Deletions are lazy (ids go into a tombstone set) to avoid a known coder/hnsw issue
// when removing the last node from a graph, mirrored from the teacher's
// comment in HNSWStore.Add/Delete.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	cfg     Config
	deleted map[uint64]struct{}
}

// New constructs an empty Index for cfg.
func New(cfg Config) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = distanceFor(cfg.Metric)
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{graph: graph, cfg: cfg, deleted: make(map[uint64]struct{})}
}

// Add inserts or replaces the vector for id. It clears any tombstone on id
// and hands the vector to the graph's Add, which keys nodes by id.
func (idx *Index) Add(id uint64, vector []float32) error {
	if len(vector) != idx.cfg.Dimensions {
		return cxperr.New(cxperr.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector has %d dimensions, index expects %d", len(vector), idx.cfg.Dimensions), nil)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.deleted, id)
	vec := make([]float32, len(vector))
	copy(vec, vector)
	idx.graph.Add(hnsw.MakeNode(id, vec))
	return nil
}

// SetExpansionSearch adjusts expansion_search (the query-time candidate list
// size) at runtime, trading recall for latency per spec §4.10's Tuning
// contract. Takes effect on the next Search call.
func (idx *Index) SetExpansionSearch(n int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.cfg.EfSearch = n
	idx.graph.EfSearch = n
}

// Delete tombstones id so future searches skip it.
func (idx *Index) Delete(id uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleted[id] = struct{}{}
}

// Search returns up to k neighbors of query, ordered ascending by distance
//.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.cfg.Dimensions {
		return nil, cxperr.New(cxperr.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index expects %d", len(query), idx.cfg.Dimensions), nil)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to compensate for tombstoned results that must be filtered.
	fetch := k + len(idx.deleted)
	if fetch < k {
		fetch = k
	}
	nodes := idx.graph.Search(query, fetch)

	out := make([]Result, 0, k)
	for _, node := range nodes {
		if _, gone := idx.deleted[node.Key]; gone {
			continue
		}
		out = append(out, Result{ID: node.Key, Distance: idx.graph.Distance(query, node.Value)})
		if len(out) == k {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Len returns the number of live (non-tombstoned) vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph.Len() - len(idx.deleted)
}

// Save persists the graph and its metadata under path (graph) and path+".meta"
// (gob-encoded Config and tombstones), following the teacher's atomic
// temp-file-then-rename pattern.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	return idx.saveMeta(path + ".meta")
}

func (idx *Index) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := gob.NewEncoder(f).Encode(persistedMeta{Config: idx.cfg}); err != nil {
		f.Close()
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return os.Rename(tmp, path)
}

// Load reconstructs an Index previously written by Save.
func Load(path string) (*Index, error) {
	meta, err := loadMeta(path + ".meta")
	if err != nil {
		return nil, err
	}

	idx := New(meta.Config)

	f, err := os.Open(path)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer f.Close()

	if err := idx.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}
	return idx, nil
}

func loadMeta(path string) (persistedMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return persistedMeta{}, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer f.Close()

	var meta persistedMeta
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return persistedMeta{}, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}
	return meta, nil
}

// BinaryVectorFromEmbedding expands a packed BinaryEmbedding into the
// 0.0/1.0-valued float32 slice the Hamming metric operates on.
func BinaryVectorFromEmbedding(e quantize.BinaryEmbedding) []float32 {
	out := make([]float32, e.Dimensions)
	for i := range out {
		if e.Bits[i/8]&(1<<uint(i%8)) != 0 {
			out[i] = 1.0
		}
	}
	return out
}
