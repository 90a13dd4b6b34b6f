package container

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cxparchive/cxp/internal/buildlock"
	"github.com/cxparchive/cxp/internal/chunker"
	"github.com/cxparchive/cxp/internal/chunkstore"
	"github.com/cxparchive/cxp/internal/compress"
	"github.com/cxparchive/cxp/internal/cxpconfig"
	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/embedfn"
	"github.com/cxparchive/cxp/internal/embedstore"
	"github.com/cxparchive/cxp/internal/extensions"
	"github.com/cxparchive/cxp/internal/fileset"
	"github.com/cxparchive/cxp/internal/filemap"
	"github.com/cxparchive/cxp/internal/manifest"
	"github.com/cxparchive/cxp/internal/quantize"
	"github.com/cxparchive/cxp/internal/unifiedindex"
	"github.com/cxparchive/cxp/internal/vectorindex"
)

// State is the Writer's build state machine:
// New -> Scanned -> Processed -> (Embedded?) -> Built -> Sealed.
type State int

const (
	StateNew State = iota
	StateScanned
	StateProcessed
	StateEmbedded
	StateBuilt
	StateSealed
)

// binaryDataPlaceholder is embedded in place of a chunk's decoded text when
// its bytes are not valid UTF-8.
const binaryDataPlaceholder = "[binary data]"

type embeddedItem struct {
	id        uint64
	chunkHash string
	filePath  string
	isImage   bool
	vector    []float32
}

// Writer builds one archive from a source directory, following the state
// machine and ordering guarantees of spec §4.12.
type Writer struct {
	sourceDir  string
	withImages bool
	cfg        cxpconfig.Config

	manifest   *manifest.Manifest
	fileMap    *filemap.FileMap
	chunkStore *chunkstore.Store
	extReg     *extensions.Registry

	state State

	textEncoder  embedfn.TextEncoder
	imageEncoder embedfn.ImageEncoder
	multimodal   bool

	binaryBatch []quantize.BinaryEmbedding
	int8Batch   []quantize.Int8Embedding
	// unifiedIdx is always used once embeddings exist, even for a
	// text-only build: every vector id gets an explicit {chunk_id,
	// file_path} (or {file_path}) metadata entry up front, resolving the
	// ambiguous id-to-chunk mapping the original placeholder left buggy.
	unifiedIdx *unifiedindex.Index
}

// New constructs a Writer over sourceDir with image processing off and
// default chunker/compress tunables).
func New(sourceDir string) *Writer {
	return &Writer{
		sourceDir:  sourceDir,
		cfg:        cxpconfig.Default(),
		manifest:   manifest.New(),
		fileMap:    filemap.New(),
		chunkStore: chunkstore.New(),
		extReg:     extensions.New(),
		state:      StateNew,
	}
}

// WithConfig overrides the default chunker/compress tunables.
func (w *Writer) WithConfig(cfg cxpconfig.Config) *Writer {
	w.cfg = cfg
	return w
}

// WithImages opts into image scanning and image embeddings.
func (w *Writer) WithImages() *Writer {
	w.withImages = true
	return w
}

// WithEmbeddings registers a text-only embedding collaborator.
func (w *Writer) WithEmbeddings(encoder embedfn.TextEncoder) *Writer {
	w.textEncoder = encoder
	w.multimodal = false
	return w
}

// WithMultimodalEmbeddings registers paired text/image embedding
// collaborators sharing one vector space.
func (w *Writer) WithMultimodalEmbeddings(text embedfn.TextEncoder, image embedfn.ImageEncoder) *Writer {
	w.textEncoder = text
	w.imageEncoder = image
	w.multimodal = true
	return w
}

func (w *Writer) requireState(want State, op string) error {
	if w.state != want {
		return cxperr.New(cxperr.ErrCodeMalformedArchive,
			"cannot "+op+" in current writer state", nil)
	}
	return nil
}

// Scan walks sourceDir following symlinks, retaining regular text-extension
// files; with images enabled, a second pass retains image-extension files
//).
func (w *Writer) Scan() ([]string, error) {
	if err := w.requireState(StateNew, "scan"); err != nil {
		return nil, err
	}

	var retained []string
	err := filepath.Walk(w.sourceDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := fileset.Ext(info.Name())
		if fileset.IsText(ext) || (w.withImages && fileset.IsImage(ext)) {
			rel, relErr := filepath.Rel(w.sourceDir, path)
			if relErr != nil {
				return relErr
			}
			retained = append(retained, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	sort.Strings(retained)
	w.state = StateScanned
	return retained, nil
}

// Process reads every retained file, chunks and hashes text files,
// inserts chunks into the ChunkStore, and records a FileEntry per file
//). Image files become a single whole-file chunk with
// IsImage=true.
func (w *Writer) Process(retained []string) error {
	if err := w.requireState(StateScanned, "process"); err != nil {
		return err
	}

	chunkerCfg := chunker.Config{
		MinSize:    w.cfg.Chunker.MinSize,
		TargetSize: w.cfg.Chunker.TargetSize,
		MaxSize:    w.cfg.Chunker.MaxSize,
	}
	splitter := chunker.New(chunkerCfg)

	for _, relPath := range retained {
		absPath := filepath.Join(w.sourceDir, filepath.FromSlash(relPath))
		data, err := os.ReadFile(absPath)
		if err != nil {
			return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
		}

		ext := fileset.Ext(relPath)
		isImage := w.withImages && fileset.IsImage(ext)

		var chunks []chunker.Chunk
		if isImage {
			chunks = []chunker.Chunk{{Hash: chunker.HashHex(data), Bytes: data, Offset: 0, Length: len(data)}}
		} else {
			chunks = splitter.Split(data)
		}

		refs := w.chunkStore.AddMany(chunks)
		entry := filemap.FileEntry{
			Path:      relPath,
			Extension: ext,
			Size:      int64(len(data)),
			Chunks:    refs,
			IsImage:   isImage,
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		w.fileMap.Insert(entry)
		w.manifest.AddFileType(ext, relPath, int64(len(data)))
	}

	stats := w.chunkStore.Stats()
	w.manifest.Stats.TotalFiles = w.fileMap.Len()
	w.manifest.Stats.UniqueChunks = stats.Unique
	w.manifest.Stats.OriginalSize = stats.TotalBytes
	w.manifest.Stats.DedupSavingsPercent = stats.DedupSavingsPercent()

	w.state = StateProcessed
	return nil
}

// AddExtension registers namespace and writes each (key, bytes) pair under
// it, appending namespace to the manifest's extension list.
func (w *Writer) AddExtension(namespace string, payload map[string][]byte) error {
	if err := w.extReg.Register(namespace, 1); err != nil {
		return err
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.extReg.WriteData(namespace, k, payload[k]); err != nil {
			return err
		}
	}
	w.manifest.RegisterExtension(namespace)
	return nil
}

// GenerateEmbeddings iterates unique chunks in lexical hash order, in
// batches of cfg.Embeddings.BatchSize (32 when unset), and embeds them per spec §4.12 generate_embeddings. Text bytes are
// interpreted as UTF-8; non-UTF-8 chunks embed the literal placeholder
// "[binary data]" instead (documented degradation).
func (w *Writer) GenerateEmbeddings(ctx context.Context) error {
	if w.state != StateProcessed {
		return cxperr.New(cxperr.ErrCodeMalformedArchive, "cannot generate embeddings before process()", nil)
	}
	if w.textEncoder == nil {
		return cxperr.New(cxperr.ErrCodeEmbeddingUnavailable, "no embedding collaborator registered", nil)
	}

	imageChunkHashes := map[string]string{} // chunk hash -> file path
	if w.multimodal {
		for _, path := range w.fileMap.SortedPaths() {
			entry, _ := w.fileMap.Get(path)
			if entry.IsImage && len(entry.Chunks) == 1 {
				imageChunkHashes[entry.Chunks[0].Hash] = path
			}
		}
	}

	hashes := make([]string, 0, w.chunkStore.Len())
	w.chunkStore.Iter(func(c chunker.Chunk) { hashes = append(hashes, c.Hash) })
	sort.Strings(hashes)

	var items []embeddedItem
	var nextID uint64

	batchSize := w.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	var textHashes []string
	for _, h := range hashes {
		if _, isImg := imageChunkHashes[h]; isImg {
			continue
		}
		textHashes = append(textHashes, h)
	}

	for start := 0; start < len(textHashes); start += batchSize {
		end := start + batchSize
		if end > len(textHashes) {
			end = len(textHashes)
		}
		batchHashes := textHashes[start:end]

		texts := make([]string, len(batchHashes))
		for i, h := range batchHashes {
			c, _ := w.chunkStore.Get(h)
			if utf8.Valid(c.Bytes) {
				texts[i] = string(c.Bytes)
			} else {
				texts[i] = binaryDataPlaceholder
			}
		}

		vectors, err := w.textEncoder.EmbedText(ctx, texts)
		if err != nil {
			return cxperr.Wrap(cxperr.ErrCodeEncoderFailed, err)
		}

		for i, h := range batchHashes {
			path, _ := w.fileMap.FindByChunkHash(h)
			items = append(items, embeddedItem{id: nextID, chunkHash: h, filePath: path, vector: vectors[i]})
			nextID++
		}
	}

	if w.multimodal {
		imagePaths := make([]string, 0, len(imageChunkHashes))
		for _, path := range imageChunkHashes {
			imagePaths = append(imagePaths, path)
		}
		sort.Strings(imagePaths)

		for _, path := range imagePaths {
			vec, err := w.imageEncoder.EmbedImage(ctx, path)
			if err != nil {
				return cxperr.Wrap(cxperr.ErrCodeEncoderFailed, err)
			}
			items = append(items, embeddedItem{id: nextID, filePath: path, isImage: true, vector: vec})
			nextID++
		}
	}

	dim := w.textEncoder.Dimensions()
	modelName := w.textEncoder.ModelName()
	w.manifest.EmbeddingModel = &modelName
	w.manifest.EmbeddingDim = &dim

	w.binaryBatch = make([]quantize.BinaryEmbedding, len(items))
	w.int8Batch = make([]quantize.Int8Embedding, len(items))
	for i, it := range items {
		w.binaryBatch[i] = quantize.BinaryFromFloat(it.vector)
		w.int8Batch[i] = quantize.Int8FromFloat(it.vector)
	}

	// The index holds the binary-quantized vectors under Hamming distance,
	// not the raw floats: search_semantic's coarse ANN pass
	// recalls candidates by Hamming distance and only rescores the winners
	// with int8 dot product, so the index itself never needs full-precision
	// vectors.
	inner := vectorindex.New(vectorindex.DefaultConfig(dim, vectorindex.MetricHamming))
	unified := unifiedindex.New(inner)
	for i, it := range items {
		binVec := vectorindex.BinaryVectorFromEmbedding(w.binaryBatch[i])
		var err error
		if it.isImage {
			err = unified.AddImage(it.id, binVec, it.filePath)
		} else {
			err = unified.AddText(it.id, binVec, it.chunkHash, it.filePath)
		}
		if err != nil {
			return err
		}
	}
	w.unifiedIdx = unified

	w.state = StateEmbedded
	return nil
}

// Build triggers auto-embedding if an engine is registered but vectors are
// absent, then writes the ZIP container to a temp path guarded by a
// cross-process lock and renames it into place,
// §5 temp-path-then-rename, §6 ZIP entry layout).
func (w *Writer) Build(ctx context.Context, outputPath string) error {
	if w.state != StateProcessed && w.state != StateEmbedded {
		return cxperr.New(cxperr.ErrCodeMalformedArchive, "cannot build before process()", nil)
	}
	if w.state == StateProcessed && w.textEncoder != nil {
		if err := w.GenerateEmbeddings(ctx); err != nil {
			return err
		}
	}

	lock := buildlock.New(outputPath)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	tmpPath := outputPath + ".tmp"
	if err := w.writeZip(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	w.state = StateSealed
	return nil
}

func (w *Writer) writeZip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeTempWriteFailed, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	manifestData, err := msgpack.Marshal(w.manifest)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	if err := writeStoredEntry(zw, entryManifest, manifestData); err != nil {
		return err
	}

	fileMapData, err := msgpack.Marshal(w.fileMap)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
	}
	if err := writeStoredEntry(zw, entryFileMap, fileMapData); err != nil {
		return err
	}

	if err := w.writeChunkEntries(zw); err != nil {
		return err
	}
	if err := w.writeEmbeddingEntries(zw); err != nil {
		return err
	}
	if err := w.writeExtensionEntries(zw); err != nil {
		return err
	}

	return zw.Close()
}

func (w *Writer) writeChunkEntries(zw *zip.Writer) error {
	var errOut error
	w.chunkStore.Iter(func(c chunker.Chunk) {
		if errOut != nil {
			return
		}
		compressed, err := compress.Compress(c.Bytes, w.cfg.Compress.Level)
		if err != nil {
			errOut = err
			return
		}
		errOut = writeStoredEntry(zw, chunkEntryName(c.ShortID()), compressed)
	})
	return errOut
}

func (w *Writer) writeEmbeddingEntries(zw *zip.Writer) error {
	if w.unifiedIdx == nil {
		return nil
	}

	binData, err := embedstore.EncodeBinaryBatch(w.binaryBatch)
	if err != nil {
		return err
	}
	if err := writeStoredEntry(zw, entryEmbeddingsBinary, binData); err != nil {
		return err
	}

	int8Data, err := embedstore.EncodeInt8Batch(w.int8Batch)
	if err != nil {
		return err
	}
	if err := writeStoredEntry(zw, entryEmbeddingsInt8, int8Data); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "cxp-index-*")
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeTempWriteFailed, err)
	}
	defer os.RemoveAll(tmpDir)

	base := filepath.Join(tmpDir, "unified")
	if err := w.unifiedIdx.Save(base); err != nil {
		return err
	}
	if err := copyFileIntoZip(zw, base+".index", entryUnifiedIndex); err != nil {
		return err
	}
	if err := copyFileIntoZip(zw, base+".index.meta", entryUnifiedIndexMeta); err != nil {
		return err
	}
	return copyFileIntoZip(zw, base+".meta", entryUnifiedMeta)
}

func (w *Writer) writeExtensionEntries(zw *zip.Writer) error {
	for _, ns := range w.extReg.ListExtensions() {
		manifestEntry, err := w.extReg.Manifest(ns)
		if err != nil {
			return err
		}
		manifestData, err := msgpack.Marshal(manifestEntry)
		if err != nil {
			return cxperr.Wrap(cxperr.ErrCodeSerializeFailed, err)
		}
		if err := writeStoredEntry(zw, extensionsDir+ns+"/manifest.msgpack", manifestData); err != nil {
			return err
		}

		keys, err := w.extReg.ListDataKeys(ns)
		if err != nil {
			return err
		}
		for _, key := range keys {
			data, err := w.extReg.ReadData(ns, key)
			if err != nil {
				return err
			}
			if err := writeStoredEntry(zw, extensionsDir+ns+"/"+key, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStoredEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	if _, err := w.Write(data); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return nil
}

func copyFileIntoZip(zw *zip.Writer, srcPath, entryName string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	return writeStoredEntry(zw, entryName, data)
}

