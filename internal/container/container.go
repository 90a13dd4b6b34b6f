// Package container implements the Container Writer and Container
// Reader: the archive's on-disk ZIP layout, its state machine, and the
// two-stage semantic search pipeline. The container
// itself is a store-only archive/zip file (entries are already
// zstd-compressed, so re-compressing them would waste CPU for no gain) --
// grounded on the teacher's go-delta/container.go pattern of a flat,
// bit-exact entry layout.
package container

const (
	entryManifest = "manifest.msgpack"
	entryFileMap  = "file_map.msgpack"
	chunkDir      = "chunks/"
	chunkSuffix   = ".zst"

	entryEmbeddingsBinary = "embeddings/binary.bin"
	entryEmbeddingsInt8   = "embeddings/int8.bin"
	entryUnifiedIndex     = "embeddings/unified.index"
	entryUnifiedIndexMeta = "embeddings/unified.index.meta"
	entryUnifiedMeta      = "embeddings/unified.meta"

	extensionsDir = "extensions/"
)

func chunkEntryName(shortID string) string {
	return chunkDir + shortID + chunkSuffix
}
