// Package archivemanager implements the Archive Manager: a
// process-wide LRU cache of open archives with tier-aware eviction and a
// cross-archive Global Index, grounded on the teacher's index/coordinator.go
// (a single long-lived coordinator guarding shared state behind one lock)
// and creativeyann17-go-delta's intrusive lruList *list.List pattern -- used
// here instead of hashicorp/golang-lru alone because eviction must skip Hot
// entries out of strict recency order, which a plain LRU cannot express
//.
package archivemanager

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cxparchive/cxp/internal/archiveref"
	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/globalindex"
	"github.com/cxparchive/cxp/internal/tier"
)

const (
	// MasterArchiveExt names storage_root/master.<ext>).
	MasterArchiveExt = "cxp"
	// ArchiveRefExt names each child pointer file under master/children/.
	ArchiveRefExt = "cxpref"
)

// Config tunes the Manager's cache limits.
type Config struct {
	MaxMemoryBytes    int64
	MaxCachedArchives int
	PreloadHot        bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxMemoryBytes:    500 * 1024 * 1024,
		MaxCachedArchives: 50,
		PreloadHot:        true,
	}
}

type cacheEntry struct {
	id      string
	ref     *archiveref.ArchiveRef
	reader  *container.Reader
	memSize int64
	pinned  int
}

// Manager is the process-wide handle over one storage_root. All state (the
// cache, its recency order, the running memory counter, the root children
// map, and the global index) lives behind a single sync.RWMutex: acquiring
// one guard for all of it trivially satisfies spec §5's documented
// cache -> lru_order -> memory acquisition order, since no second lock ever
// needs to be taken while the first is held.
type Manager struct {
	mu sync.RWMutex

	storageRoot string
	cfg         Config

	cache         map[string]*listNode
	lruHead       *listNode // most recently used
	lruTail       *listNode // least recently used
	currentMemory int64

	rootChildren map[string]*archiveref.ArchiveRef
	rootOrder    []string

	globalIdx *globalindex.Index
}

// listNode is a hand-rolled doubly linked list node (rather than
// container/list) so eviction can splice out an arbitrary Warm/Cold node
// without the Value-any boxing container/list requires.
type listNode struct {
	entry      *cacheEntry
	prev, next *listNode
}

// New constructs a Manager over storageRoot without touching disk; call
// Init to discover and preload a master archive.
func New(storageRoot string, cfg Config) *Manager {
	return &Manager{
		storageRoot:  storageRoot,
		cfg:          cfg,
		cache:        make(map[string]*listNode),
		rootChildren: make(map[string]*archiveref.ArchiveRef),
		globalIdx:    globalindex.New(),
	}
}

func (m *Manager) masterPath() string {
	return filepath.Join(m.storageRoot, "master."+MasterArchiveExt)
}

func (m *Manager) childrenDir() string {
	return filepath.Join(m.storageRoot, "master", "children")
}

// Init looks for master.<ext> under storage_root; if present, reads every
// children/*.<ref-ext> file into the root ChildrenMap, then preloads
// Hot-tier archives up to the memory budget).
func (m *Manager) Init() error {
	if _, err := os.Stat(m.masterPath()); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	entries, err := os.ReadDir(m.childrenDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	suffix := "." + ArchiveRefExt
	var names []string
	for _, de := range entries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), suffix) {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	m.mu.Lock()
	for _, name := range names {
		data, readErr := os.ReadFile(filepath.Join(m.childrenDir(), name))
		if readErr != nil {
			m.mu.Unlock()
			return cxperr.Wrap(cxperr.ErrCodeIOFailure, readErr)
		}
		var ref archiveref.ArchiveRef
		if uerr := msgpack.Unmarshal(data, &ref); uerr != nil {
			m.mu.Unlock()
			return cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, uerr)
		}
		if _, exists := m.rootChildren[ref.ID]; !exists {
			m.rootOrder = append(m.rootOrder, ref.ID)
		}
		m.rootChildren[ref.ID] = &ref
	}
	m.mu.Unlock()

	if m.cfg.PreloadHot {
		return m.preloadHot()
	}
	return nil
}

func (m *Manager) preloadHot() error {
	m.mu.RLock()
	var hotIDs []string
	for _, id := range m.rootOrder {
		if ref := m.rootChildren[id]; ref != nil && ref.Tier == tier.Hot {
			hotIDs = append(hotIDs, ref.Name)
		}
	}
	m.mu.RUnlock()

	for _, name := range hotIDs {
		if _, err := m.Get([]string{name}); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves path (a sequence of archive ref names, joined with "/" as the
// cache id) to an open Reader, loading it into the cache on miss (spec
// §4.16 Lookup). Only root-level lookups (len(path)==1) are supported;
// nested resolution through a grandchild's own children is an open task the
// spec explicitly defers.
func (m *Manager) Get(path []string) (*container.Reader, error) {
	id := strings.Join(path, "/")

	m.mu.RLock()
	if node, ok := m.cache[id]; ok {
		reader := node.entry.reader
		ref := node.entry.ref
		m.mu.RUnlock()

		m.mu.Lock()
		m.touch(node)
		ref.Touch(time.Now())
		m.mu.Unlock()
		return reader, nil
	}
	m.mu.RUnlock()

	if len(path) != 1 {
		return nil, cxperr.New(cxperr.ErrCodeRefNotFound,
			"nested archive resolution is not supported in this version", nil)
	}

	m.mu.RLock()
	ref, ok := m.rootChildren[findIDByName(m.rootChildren, m.rootOrder, path[0])]
	m.mu.RUnlock()
	if !ok || ref == nil {
		return nil, cxperr.New(cxperr.ErrCodeRefNotFound, "no archive ref named "+path[0], nil)
	}

	if ref.Storage.Kind != archiveref.StorageExternal {
		return nil, cxperr.New(cxperr.ErrCodeRefNotFound,
			"only external storage is supported in this version", nil)
	}

	reader, err := container.Open(ref.Storage.Path)
	if err != nil {
		return nil, err
	}

	memSize, statErr := archiveMemoryFootprint(ref.Storage.Path)
	if statErr != nil {
		return nil, statErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureRoom(memSize); err != nil {
		return nil, err
	}

	node := &listNode{entry: &cacheEntry{id: id, ref: ref, reader: reader, memSize: memSize}}
	m.cache[id] = node
	m.pushFront(node)
	m.currentMemory += memSize
	ref.Touch(time.Now())

	return reader, nil
}

func findIDByName(refs map[string]*archiveref.ArchiveRef, order []string, name string) string {
	for _, id := range order {
		if refs[id] != nil && refs[id].Name == name {
			return id
		}
	}
	return ""
}

// ensureRoom evicts Warm/Cold entries from the LRU tail until adding
// needed bytes would not exceed max_memory_bytes (or the cached-archive
// count budget), never touching a Hot or pinned entry. Caller must hold m.mu (write).
func (m *Manager) ensureRoom(needed int64) error {
	for m.currentMemory+needed > m.cfg.MaxMemoryBytes || len(m.cache) >= m.cfg.MaxCachedArchives {
		victim := m.findEvictionVictim()
		if victim == nil {
			if m.currentMemory+needed > m.cfg.MaxMemoryBytes && len(m.cache) == 0 {
				// A single entry exceeds the budget: pathological case,
				// surfaced as an error rather than silently over-budget
				//.
				return cxperr.New(cxperr.ErrCodeIOFailure,
					"archive exceeds max_memory_bytes on its own", nil)
			}
			break
		}
		m.evict(victim)
	}
	return nil
}

func (m *Manager) findEvictionVictim() *listNode {
	for node := m.lruTail; node != nil; node = node.prev {
		if node.entry.pinned > 0 {
			continue
		}
		if node.entry.ref.Tier == tier.Hot {
			continue
		}
		return node
	}
	return nil
}

func (m *Manager) evict(node *listNode) {
	delete(m.cache, node.entry.id)
	m.currentMemory -= node.entry.memSize
	m.unlink(node)
}

// Pin marks id as currently held by a caller so it cannot be evicted until
// Unpin is called the same number of times.
func (m *Manager) Pin(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if node, ok := m.cache[id]; ok {
		node.entry.pinned++
	}
}

// Unpin releases one pin on id.
func (m *Manager) Unpin(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if node, ok := m.cache[id]; ok && node.entry.pinned > 0 {
		node.entry.pinned--
	}
}

// CurrentMemory returns the running memory counter, for tests verifying the
// spec §8 invariant current_memory == sum(entry.memory_size).
func (m *Manager) CurrentMemory() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentMemory
}

// CachedCount returns the number of archives currently resident.
func (m *Manager) CachedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

// --- intrusive LRU list, caller must hold m.mu ---

func (m *Manager) pushFront(node *listNode) {
	node.prev = nil
	node.next = m.lruHead
	if m.lruHead != nil {
		m.lruHead.prev = node
	}
	m.lruHead = node
	if m.lruTail == nil {
		m.lruTail = node
	}
}

func (m *Manager) unlink(node *listNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		m.lruHead = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		m.lruTail = node.prev
	}
	node.prev, node.next = nil, nil
}

func (m *Manager) touch(node *listNode) {
	if m.lruHead == node {
		return
	}
	m.unlink(node)
	m.pushFront(node)
}

// Search delegates to the Global Index.
func (m *Manager) Search(query string, limit int) []globalindex.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalIdx.Search(query, limit)
}

// SearchByType delegates to the Global Index, restricted to fileType.
func (m *Manager) SearchByType(query, fileType string, limit int) []globalindex.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalIdx.SearchByType(query, fileType, limit)
}

// IndexArchive ingests reader's file map into the Global Index under
// containerPath.
func (m *Manager) IndexArchive(containerPath []string, containerID string, reader *container.Reader) {
	entries := globalindex.EntriesFromFileMap(reader.FileMap(), reader.Manifest(), containerPath, containerID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalIdx.IngestContainer(entries)
}

// RegisterChild adds ref to the root ChildrenMap and writes its reference
// file to storage_root/master/children/<id>.<ref-ext>.
func (m *Manager) RegisterChild(ref *archiveref.ArchiveRef) error {
	data, err := msgpack.Marshal(ref)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}

	if err := os.MkdirAll(m.childrenDir(), 0o755); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	path := filepath.Join(m.childrenDir(), ref.ID+"."+ArchiveRefExt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rootChildren[ref.ID]; !exists {
		m.rootOrder = append(m.rootOrder, ref.ID)
	}
	m.rootChildren[ref.ID] = ref
	return nil
}

// archiveMemoryFootprint estimates an archive's in-cache memory cost as its
// on-disk size, a conservative over-estimate since the decompressed,
// in-memory manifest/file map/index are all proportionally smaller.
func archiveMemoryFootprint(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return info.Size(), nil
}

