package container

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cxparchive/cxp/internal/compress"
	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/embedstore"
	"github.com/cxparchive/cxp/internal/extensions"
	"github.com/cxparchive/cxp/internal/filemap"
	"github.com/cxparchive/cxp/internal/manifest"
	"github.com/cxparchive/cxp/internal/quantize"
	"github.com/cxparchive/cxp/internal/unifiedindex"
)

// SemanticResult is one ranked, rescored semantic search hit: Distance is the rescored int8 dot product with its sign
// flipped, so lower is always better across every search method.
type SemanticResult struct {
	ID       uint64
	Distance float32
}

// Reader opens an archive built by Writer and serves lazy, cached reads
//. A Reader is safe for concurrent read-only use; it never
// mutates the underlying file.
type Reader struct {
	path string

	mu sync.Mutex

	manifest *manifest.Manifest
	fileMap  *filemap.FileMap
	extReg   *extensions.Registry

	hasEmbeddingEntries bool

	embeddingsLoaded bool
	binaryBatch      []quantize.BinaryEmbedding
	int8Batch        []quantize.Int8Embedding

	unifiedIdx *unifiedindex.Index
}

// Open reads the manifest and file map eagerly and scans the container's
// extension namespaces, returning a Reader ready for read_file/search calls
//). Chunk, embedding, and index bytes are left unread.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	manifestFile, ok := entries[entryManifest]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeManifestMissing, "archive has no manifest.msgpack entry", nil)
	}
	manifestData, err := readZipEntry(manifestFile)
	if err != nil {
		return nil, err
	}
	m := manifest.New()
	if err := msgpack.Unmarshal(manifestData, m); err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}
	m.RebuildExtensionsSet()

	fileMapFile, ok := entries[entryFileMap]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeFileMapMissing, "archive has no file_map.msgpack entry", nil)
	}
	fileMapData, err := readZipEntry(fileMapFile)
	if err != nil {
		return nil, err
	}
	fm := filemap.New()
	if err := msgpack.Unmarshal(fileMapData, fm); err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
	}

	extReg := extensions.New()
	namespaces := map[string]extensions.NamespaceManifest{}
	for name, f := range entries {
		if !strings.HasPrefix(name, extensionsDir) || !strings.HasSuffix(name, "/manifest.msgpack") {
			continue
		}
		ns := strings.TrimSuffix(strings.TrimPrefix(name, extensionsDir), "/manifest.msgpack")
		data, err := readZipEntry(f)
		if err != nil {
			return nil, err
		}
		var nsManifest extensions.NamespaceManifest
		if err := msgpack.Unmarshal(data, &nsManifest); err != nil {
			return nil, cxperr.Wrap(cxperr.ErrCodeDeserializeFailed, err)
		}
		namespaces[ns] = nsManifest
	}
	for ns, nsManifest := range namespaces {
		extReg.LoadManifest(ns, nsManifest)
	}

	_, hasEmbeddings := entries[entryEmbeddingsBinary]

	return &Reader{
		path:                path,
		manifest:            m,
		fileMap:             fm,
		extReg:              extReg,
		hasEmbeddingEntries: hasEmbeddings,
	}, nil
}

// Path returns the archive's on-disk path.
func (r *Reader) Path() string { return r.path }

// Manifest returns the archive's eagerly-loaded manifest.
func (r *Reader) Manifest() *manifest.Manifest { return r.manifest }

// FileMap returns the archive's eagerly-loaded file map.
func (r *Reader) FileMap() *filemap.FileMap { return r.fileMap }

// ListExtensions returns the registered extension namespaces.
func (r *Reader) ListExtensions() []string { return r.extReg.ListExtensions() }

// ListDataKeys returns the keys written under namespace.
func (r *Reader) ListDataKeys(namespace string) ([]string, error) {
	return r.extReg.ListDataKeys(namespace)
}

// ReadExtensionData fetches and caches one extension payload, opening the
// archive only for this one entry).
func (r *Reader) ReadExtensionData(namespace, key string) ([]byte, error) {
	r.mu.Lock()
	cached, cacheErr := r.extReg.ReadData(namespace, key)
	r.mu.Unlock()
	if cacheErr == nil {
		return cached, nil
	}

	data, err := r.readZipEntryByName(extensionsDir + namespace + "/" + key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	loadErr := r.extReg.LoadData(namespace, key, data)
	r.mu.Unlock()
	if loadErr != nil {
		return nil, loadErr
	}
	return data, nil
}

// HasEmbeddings reports whether the archive declares an embedding model and
// has its embeddings namespace recorded).
func (r *Reader) HasEmbeddings() bool {
	return r.manifest.EmbeddingModel != nil && r.hasEmbeddingEntries
}

// ReadFile reconstructs path by opening the archive, locating every chunk
// FileEntry.Chunks references by short ID, decompressing, and concatenating
// into a buffer of exactly FileEntry.Size).
func (r *Reader) ReadFile(path string) ([]byte, error) {
	entry, ok := r.fileMap.Get(path)
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeFileNotFound, "no such file in archive: "+path, nil)
	}

	zr, err := zip.OpenReader(r.path)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer zr.Close()

	byName := indexZipFiles(zr.File)

	buf := make([]byte, 0, entry.Size)
	for _, ref := range entry.Chunks {
		data, err := r.fetchChunk(byName, ref.Hash)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}

	if int64(len(buf)) != entry.Size {
		return nil, cxperr.New(cxperr.ErrCodeReconstructSize,
			"reconstructed "+path+" does not match declared size", nil)
	}
	return buf, nil
}

func (r *Reader) fetchChunk(byName map[string]*zip.File, hash string) ([]byte, error) {
	shortID := hash
	if len(shortID) > 16 {
		shortID = shortID[:16]
	}
	f, ok := byName[chunkEntryName(shortID)]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeChunkNotFound, "chunk "+shortID+" not found in archive", nil)
	}
	compressed, err := readZipEntry(f)
	if err != nil {
		return nil, err
	}
	return compress.Decompress(compressed)
}

// LoadEmbeddings hydrates the quantized embedding batches from
// embeddings/binary.bin and embeddings/int8.bin, caching them on the
// handle. Idempotent: repeat calls are no-ops.
func (r *Reader) LoadEmbeddings() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.embeddingsLoaded {
		return nil
	}
	if !r.HasEmbeddings() {
		return cxperr.New(cxperr.ErrCodeNoEmbeddings, "archive has no embeddings", nil)
	}

	binData, err := r.readZipEntryByName(entryEmbeddingsBinary)
	if err != nil {
		return err
	}
	binaryBatch, err := embedstore.DecodeBinaryBatch(binData)
	if err != nil {
		return err
	}

	int8Data, err := r.readZipEntryByName(entryEmbeddingsInt8)
	if err != nil {
		return err
	}
	int8Batch, err := embedstore.DecodeInt8Batch(int8Data)
	if err != nil {
		return err
	}

	r.binaryBatch = binaryBatch
	r.int8Batch = int8Batch
	r.embeddingsLoaded = true
	return nil
}

// LoadUnifiedIndex hydrates the unified cross-modal index from
// embeddings/unified.index(.meta) and embeddings/unified.meta, caching it
// on the handle. Idempotent.
func (r *Reader) LoadUnifiedIndex() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unifiedIdx != nil {
		return nil
	}
	if !r.HasEmbeddings() {
		return cxperr.New(cxperr.ErrCodeNoEmbeddings, "archive has no embeddings", nil)
	}

	tmpDir, err := os.MkdirTemp("", "cxp-reader-index-*")
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeTempWriteFailed, err)
	}
	defer os.RemoveAll(tmpDir)

	base := filepath.Join(tmpDir, "unified")
	if err := r.extractZipEntry(entryUnifiedIndex, base+".index"); err != nil {
		return err
	}
	if err := r.extractZipEntry(entryUnifiedIndexMeta, base+".index.meta"); err != nil {
		return err
	}
	if err := r.extractZipEntry(entryUnifiedMeta, base+".meta"); err != nil {
		return err
	}

	idx, err := unifiedindex.Load(base)
	if err != nil {
		return err
	}
	r.unifiedIdx = idx
	return nil
}

// SearchSemantic runs the two-stage pipeline from spec §4.13: a coarse
// Hamming-distance ANN pass over binary-quantized query and candidate
// vectors, then an int8 dot-product rescore of the 2k candidates. Results
// are sorted by rescored score descending and returned as {id, distance =
// -score} so lower distance is always better, matching the rest of the API.
func (r *Reader) SearchSemantic(query []float32, k int) ([]SemanticResult, error) {
	r.mu.Lock()
	idx := r.unifiedIdx
	int8Batch := r.int8Batch
	embeddingsLoaded := r.embeddingsLoaded
	r.mu.Unlock()

	if idx == nil {
		return nil, cxperr.New(cxperr.ErrCodeIndexNotLoaded, "call LoadUnifiedIndex before SearchSemantic", nil)
	}
	if !embeddingsLoaded {
		return nil, cxperr.New(cxperr.ErrCodeIndexNotLoaded, "call LoadEmbeddings before SearchSemantic", nil)
	}

	binaryQuery := quantize.BinaryFromFloat(query)
	int8Query := quantize.Int8FromFloat(query)

	binVec := make([]float32, binaryQuery.Dimensions)
	for i := range binVec {
		if binaryQuery.Bits[i/8]&(1<<uint(i%8)) != 0 {
			binVec[i] = 1.0
		}
	}

	candidates, err := idx.Search(binVec, 2*k)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeSearchFailed, err)
	}

	type scored struct {
		id    uint64
		score float32
	}
	out := make([]scored, len(candidates))
	for i, c := range candidates {
		var score float32
		if int(c.ID) < len(int8Batch) {
			score = quantize.Int8Dot(int8Query, int8Batch[c.ID])
		}
		out[i] = scored{id: c.ID, score: score}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > k {
		out = out[:k]
	}

	results := make([]SemanticResult, len(out))
	for i, s := range out {
		results[i] = SemanticResult{ID: s.id, Distance: -s.score}
	}
	return results, nil
}

// SearchMultimodal dispatches to the loaded unified index's matching method
// for filter.
func (r *Reader) SearchMultimodal(query []float32, k int, filter unifiedindex.Filter) ([]unifiedindex.Result, error) {
	r.mu.Lock()
	idx := r.unifiedIdx
	r.mu.Unlock()
	if idx == nil {
		return nil, cxperr.New(cxperr.ErrCodeIndexNotLoaded, "call LoadUnifiedIndex before SearchMultimodal", nil)
	}
	return idx.SearchMultimodal(query, k, filter)
}

// SearchImagesWithText searches the image-only partition of the unified
// index using a text-derived query vector, relying on the shared embedding
// space.
func (r *Reader) SearchImagesWithText(textQuery []float32, k int) ([]unifiedindex.Result, error) {
	return r.SearchMultimodal(textQuery, k, unifiedindex.FilterImage)
}

// SearchTextWithImage searches the text-only partition of the unified index
// using an image-derived query vector.
func (r *Reader) SearchTextWithImage(imageQuery []float32, k int) ([]unifiedindex.Result, error) {
	return r.SearchMultimodal(imageQuery, k, unifiedindex.FilterText)
}

// GetChunkText resolves the vector id to its chunk hash via the loaded
// unified index's metadata, locates the short-ID-named chunk blob,
// decompresses it, and validates UTF-8.
func (r *Reader) GetChunkText(id uint64) (string, error) {
	r.mu.Lock()
	idx := r.unifiedIdx
	r.mu.Unlock()
	if idx == nil {
		return "", cxperr.New(cxperr.ErrCodeIndexNotLoaded, "call LoadUnifiedIndex before GetChunkText", nil)
	}

	meta, ok := idx.Meta(id)
	if !ok || meta.Kind != unifiedindex.KindText || meta.ChunkID == "" {
		return "", cxperr.New(cxperr.ErrCodeChunkNotFound, "vector id has no associated text chunk", nil)
	}

	zr, err := zip.OpenReader(r.path)
	if err != nil {
		return "", cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer zr.Close()

	data, err := r.fetchChunk(indexZipFiles(zr.File), meta.ChunkID)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", cxperr.New(cxperr.ErrCodeNotUTF8, "chunk is not valid UTF-8 text", nil)
	}
	return string(data), nil
}

// Close releases the Reader's cached resources. Chunk/extension reads reopen
// the archive file per call, so Close has nothing to flush, but is provided
// for symmetry with Writer's lifecycle and future caching.
func (r *Reader) Close() error { return nil }

func (r *Reader) readZipEntryByName(name string) ([]byte, error) {
	zr, err := zip.OpenReader(r.path)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == name {
			return readZipEntry(f)
		}
	}
	return nil, cxperr.New(cxperr.ErrCodeKeyNotFound, "archive entry not found: "+name, nil)
}

func (r *Reader) extractZipEntry(entryName, destPath string) error {
	data, err := r.readZipEntryByName(entryName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return nil
}

func indexZipFiles(files []*zip.File) map[string]*zip.File {
	out := make(map[string]*zip.File, len(files))
	for _, f := range files {
		out[f.Name] = f
	}
	return out
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return data, nil
}
