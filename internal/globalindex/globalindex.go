// Package globalindex implements the Global Index: a cross-archive
// file catalog that lets the Archive Manager search every known file's
// keywords, type, and preview without loading the owning archive.
//
// Entries are append-only; removals tombstone a container's range instead of
// shifting indices, so in-flight container_ranges stay valid until the next
// Compact. A bleve in-memory index (github.com/blevesearch/bleve/v2)
// supplies the candidate set for a query -- matching the teacher's
// BleveBM25Index pattern (internal/store/bm25.go) of an ephemeral,
// rebuildable full-text index layered under a domain-specific scorer -- and
// the weighted formula from spec §4.15 is then computed directly from the
// stored entries for that candidate set, never from bleve's own score.
package globalindex

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/filemap"
	"github.com/cxparchive/cxp/internal/manifest"
	"github.com/cxparchive/cxp/internal/tier"
)

// Entry mirrors spec §3 GlobalIndexEntry: one file, catalogued under the
// container path that owns it.
type Entry struct {
	ContainerID   string    `msgpack:"container_id"`
	ContainerPath []string  `msgpack:"container_path"`
	FilePath      string    `msgpack:"file_path"`
	FileName      string    `msgpack:"file_name"`
	FileType      string    `msgpack:"file_type"`
	FileSize      int64     `msgpack:"file_size"`
	Keywords      []string  `msgpack:"keywords"`
	Tier          tier.Tier `msgpack:"tier"`
	ModifiedAt    time.Time `msgpack:"modified_at"`
	EmbeddingHash *uint64   `msgpack:"embedding_hash,omitempty"`
	Preview       string    `msgpack:"preview,omitempty"`
}

const (
	maxKeywords = 20
	maxPreview  = 200
)

// Clamp enforces the entry's size caps; IngestFile calls it on every entry it stores.
func (e *Entry) Clamp() {
	if len(e.Keywords) > maxKeywords {
		e.Keywords = e.Keywords[:maxKeywords]
	}
	if len(e.Preview) > maxPreview {
		e.Preview = e.Preview[:maxPreview]
	}
}

// Stats summarizes the index's current size, refreshed by Compact.
type Stats struct {
	TotalEntries    int `msgpack:"total_entries"`
	TotalContainers int `msgpack:"total_containers"`
	RemovedEntries  int `msgpack:"removed_entries"`
}

// Result is one scored search hit.
type Result struct {
	Entry Entry
	Score float64
}

var tierMultiplier = map[tier.Tier]float64{
	tier.Hot:  1.2,
	tier.Warm: 1.0,
	tier.Cold: 0.8,
}

// Index is the cross-archive catalog. Not safe for concurrent mutation; the
// Archive Manager guards it behind its own write lock.
type Index struct {
	entries []Entry
	stats   Stats

	containerRanges map[string][2]int
	keywordIndex    map[string][]int
	typeIndex       map[string][]int

	bleveIdx bleve.Index
}

type bleveDoc struct {
	Blob string `json:"blob"`
}

// New returns an empty Index with its derived structures (including a fresh
// in-memory bleve index) built.
func New() *Index {
	idx := &Index{}
	idx.rebuild()
	return idx
}

func containerKey(path []string) string { return strings.Join(path, "/") }

// IngestFile appends one file's Entry, grouped by ContainerPath; insertion
// order is the entry's stable tie-break key for Search.
func (idx *Index) IngestFile(e Entry) {
	e.Clamp()
	key := containerKey(e.ContainerPath)

	start, hasRange := idx.containerRanges[key]
	i := len(idx.entries)
	idx.entries = append(idx.entries, e)

	if hasRange {
		idx.containerRanges[key] = [2]int{start[0], i + 1}
	} else {
		idx.containerRanges[key] = [2]int{i, i + 1}
	}

	idx.indexOne(i, e)
	idx.stats.TotalEntries = len(idx.entries)
	idx.stats.TotalContainers = len(idx.containerRanges)
}

// IngestContainer ingests every entry in entries, all sharing containerPath.
func (idx *Index) IngestContainer(entries []Entry) {
	for _, e := range entries {
		idx.IngestFile(e)
	}
}

// EntriesFromFileMap builds one Entry per file in fm, tagging each with
// containerPath/containerID and mf's keywords and tier. Callers feed the result to IngestContainer.
func EntriesFromFileMap(fm *filemap.FileMap, mf *manifest.Manifest, containerPath []string, containerID string) []Entry {
	paths := fm.SortedPaths()
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		fe, ok := fm.Get(path)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			ContainerID:   containerID,
			ContainerPath: containerPath,
			FilePath:      fe.Path,
			FileName:      filepath.Base(fe.Path),
			FileType:      fe.Extension,
			FileSize:      fe.Size,
			Keywords:      mf.Keywords,
			Tier:          mf.Tier,
			ModifiedAt:    mf.UpdatedAt,
		})
	}
	return entries
}

func (idx *Index) indexOne(i int, e Entry) {
	for _, kw := range e.Keywords {
		token := strings.ToLower(kw)
		idx.keywordIndex[token] = append(idx.keywordIndex[token], i)
	}
	if e.FileType != "" {
		token := strings.ToLower(e.FileType)
		idx.typeIndex[token] = append(idx.typeIndex[token], i)
	}
	if idx.bleveIdx != nil {
		_ = idx.bleveIdx.Index(strconv.Itoa(i), bleveDoc{Blob: searchBlob(e)})
	}
}

func searchBlob(e Entry) string {
	var b strings.Builder
	b.WriteString(e.FileName)
	b.WriteByte(' ')
	b.WriteString(e.FilePath)
	b.WriteByte(' ')
	b.WriteString(e.FileType)
	b.WriteByte(' ')
	b.WriteString(strings.Join(e.Keywords, " "))
	b.WriteByte(' ')
	b.WriteString(e.Preview)
	return b.String()
}

// RemoveContainer tombstones every entry in containerPath's range (its
// ContainerID is cleared) without shifting any other entry's index (spec
// §4.15 remove_container).
func (idx *Index) RemoveContainer(containerPath []string) {
	key := containerKey(containerPath)
	rng, ok := idx.containerRanges[key]
	if !ok {
		return
	}
	for i := rng[0]; i < rng[1]; i++ {
		if idx.entries[i].ContainerID != "" {
			idx.entries[i].ContainerID = ""
			idx.stats.RemovedEntries++
		}
	}
}

// Compact drops tombstoned entries and rebuilds every derived structure,
// refreshing Stats.
func (idx *Index) Compact() {
	live := idx.entries[:0:0]
	for _, e := range idx.entries {
		if e.ContainerID != "" {
			live = append(live, e)
		}
	}
	idx.entries = live
	idx.rebuild()
}

func (idx *Index) rebuild() {
	idx.containerRanges = make(map[string][2]int)
	idx.keywordIndex = make(map[string][]int)
	idx.typeIndex = make(map[string][]int)

	mapping := bleve.NewIndexMapping()
	bleveIdx, err := bleve.NewMemOnly(mapping)
	if err == nil {
		idx.bleveIdx = bleveIdx
	} else {
		idx.bleveIdx = nil
	}

	for i, e := range idx.entries {
		key := containerKey(e.ContainerPath)
		if rng, ok := idx.containerRanges[key]; ok {
			idx.containerRanges[key] = [2]int{rng[0], i + 1}
		} else {
			idx.containerRanges[key] = [2]int{i, i + 1}
		}
		idx.indexOne(i, e)
	}

	idx.stats = Stats{TotalEntries: len(idx.entries), TotalContainers: len(idx.containerRanges)}
	for _, e := range idx.entries {
		if e.ContainerID == "" {
			idx.stats.RemovedEntries++
		}
	}
}

// candidateSet asks bleve for entries whose search blob matches query,
// falling back to a full scan (every live index) if bleve failed to build
// (e.g. unsupported environment) so scoring still runs correctly, just
// without the fast narrowing.
func (idx *Index) candidateSet(query string) []int {
	if idx.bleveIdx == nil || strings.TrimSpace(query) == "" {
		out := make([]int, len(idx.entries))
		for i := range idx.entries {
			out[i] = i
		}
		return out
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("blob")
	req := bleve.NewSearchRequest(q)
	req.Size = len(idx.entries)
	if req.Size == 0 {
		req.Size = 1
	}

	res, err := idx.bleveIdx.Search(req)
	if err != nil {
		out := make([]int, len(idx.entries))
		for i := range idx.entries {
			out[i] = i
		}
		return out
	}

	seen := make(map[int]struct{}, len(res.Hits))
	out := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, convErr := strconv.Atoi(hit.ID)
		if convErr != nil {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}

// score computes the weighted formula from spec §4.15 for one entry against
// query, pre-split into lowercase terms.
func score(e Entry, query string, terms []string) float64 {
	q := strings.ToLower(query)
	var s float64

	if strings.Contains(strings.ToLower(e.FileName), q) {
		s += 10
	}
	if strings.Contains(strings.ToLower(e.FilePath), q) {
		s += 5
	}
	if strings.EqualFold(e.FileType, query) {
		s += 3
	}

	lowerKeywords := make([]string, len(e.Keywords))
	for i, kw := range e.Keywords {
		lowerKeywords[i] = strings.ToLower(kw)
	}
	for _, kw := range lowerKeywords {
		if q != "" && strings.Contains(kw, q) {
			s += 2
		}
	}
	for _, term := range terms {
		if len(term) < 4 {
			continue
		}
		for _, kw := range lowerKeywords {
			if strings.HasPrefix(kw, term) {
				s++
			}
		}
	}

	lowerPreview := strings.ToLower(e.Preview)
	for _, term := range terms {
		if term != "" && strings.Contains(lowerPreview, term) {
			s++
		}
	}

	return s * tierMultiplier[e.Tier]
}

func splitTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	return fields
}

// Search returns up to limit non-removed entries ranked by spec §4.15's
// weighted, tier-multiplied score, descending, with ties broken by
// insertion index (earlier wins).
func (idx *Index) Search(query string, limit int) []Result {
	terms := splitTerms(query)
	candidates := idx.candidateSet(query)

	type scoredIdx struct {
		i     int
		score float64
	}
	scored := make([]scoredIdx, 0, len(candidates))
	for _, i := range candidates {
		e := idx.entries[i]
		if e.ContainerID == "" {
			continue
		}
		scored = append(scored, scoredIdx{i: i, score: score(e, query, terms)})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].i < scored[b].i
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]Result, len(scored))
	for i, s := range scored {
		out[i] = Result{Entry: idx.entries[s.i], Score: s.score}
	}
	return out
}

// SearchByType restricts Search's candidate set to entries whose FileType
// matches fileType exactly (case-insensitive), still scored and ordered by
// the same weighted formula.
func (idx *Index) SearchByType(query, fileType string, limit int) []Result {
	results := idx.Search(query, 0)
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if strings.EqualFold(r.Entry.FileType, fileType) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats returns the current size summary.
func (idx *Index) Stats() Stats { return idx.stats }

// Len returns the number of entries (including tombstoned ones not yet
// compacted away).
func (idx *Index) Len() int { return len(idx.entries) }

// persisted is the MessagePack wire form: only Entries are authoritative; keyword/type indices
// and the bleve index are recomputed by rebuild().
type persisted struct {
	Entries []Entry `msgpack:"entries"`
	Stats   Stats   `msgpack:"stats"`
}

// Marshal serializes the Index to MessagePack.
func (idx *Index) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(persisted{Entries: idx.entries, Stats: idx.stats})
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	return data, nil
}

// Unmarshal loads an Index previously written by Marshal, rebuilding every
// derived structure from the entries alone.
func Unmarshal(data []byte) (*Index, error) {
	var p persisted
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}
	idx := &Index{entries: p.Entries}
	idx.rebuild()
	return idx, nil
}

// EmbeddingHash computes the 64-bit locality-sensitive hash spec §3 attaches
// to an entry's embedding_hash field: the top bit set in each of 64 evenly
// spaced dimensions of v, matching a simplified random-hyperplane LSH (one
// hyperplane per bit, selected deterministically from dimension index so the
// hash is reproducible without storing hyperplanes).
func EmbeddingHash(v []float32) uint64 {
	if len(v) == 0 {
		return 0
	}
	var h uint64
	for bit := 0; bit < 64; bit++ {
		idx := (bit * len(v)) / 64
		if v[idx] > 0 {
			h |= 1 << uint(bit)
		}
	}
	return h
}

// String renders a human-readable identity for the entry, for log lines.
func (e Entry) String() string {
	return fmt.Sprintf("%s/%s", containerKey(e.ContainerPath), e.FilePath)
}
