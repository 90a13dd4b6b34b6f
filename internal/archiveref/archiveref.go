// Package archiveref implements ArchiveRef: a lightweight, storage-kind
// tagged pointer to a child archive, used by the recursive builder, the
// children map, and the archive manager. It never references its parent by
// pointer — only by an optional name-path — so the hierarchy can never form
// an ownership cycle.
package archiveref

import (
	"time"

	"github.com/cxparchive/cxp/internal/tier"
)

// StorageKind tags how a child archive's bytes are reached.
type StorageKind string

const (
	StorageExternal StorageKind = "external"
	StorageEmbedded StorageKind = "embedded"
	StorageRemote   StorageKind = "remote"
)

// Storage is a sum type: exactly one of Path (for External/Embedded) or
// URL+Checksum (for Remote) is meaningful, selected by Kind.
type Storage struct {
	Kind     StorageKind `msgpack:"kind"`
	Path     string      `msgpack:"path,omitempty"`
	URL      string      `msgpack:"url,omitempty"`
	Checksum string      `msgpack:"checksum,omitempty"`
}

// External builds a Storage pointing at an external archive file.
func External(path string) Storage { return Storage{Kind: StorageExternal, Path: path} }

// Embedded builds a Storage pointing at a path inside the parent container.
func Embedded(pathInContainer string) Storage {
	return Storage{Kind: StorageEmbedded, Path: pathInContainer}
}

// Remote builds a Storage pointing at a URL with an integrity checksum.
func Remote(url, checksum string) Storage {
	return Storage{Kind: StorageRemote, URL: url, Checksum: checksum}
}

// Meta mirrors a child archive's manifest stats without requiring the child
// to be loaded.
type Meta struct {
	Description       *string           `msgpack:"description,omitempty"`
	TotalFiles        int               `msgpack:"total_files"`
	ChildCount        int               `msgpack:"child_count"`
	HasChildren       bool              `msgpack:"has_children"`
	SizeBytes         int64             `msgpack:"size_bytes"`
	OriginalSizeBytes int64             `msgpack:"original_size_bytes"`
	CreatedAt         time.Time         `msgpack:"created_at"`
	UpdatedAt         time.Time         `msgpack:"updated_at"`
	Category          *string           `msgpack:"category,omitempty"`
	FileTypes         map[string]int    `msgpack:"file_types"`
	Keywords          []string          `msgpack:"keywords"`
	HasEmbeddings     bool              `msgpack:"has_embeddings"`
}

// ArchiveRef is a pointer to a child archive plus enough metadata to decide
// relevance, tier residency, and search ranking without opening it.
type ArchiveRef struct {
	ID      string      `msgpack:"id"`
	Name    string      `msgpack:"name"`
	Storage Storage     `msgpack:"storage"`
	Meta    Meta        `msgpack:"meta"`

	LastAccessed *time.Time `msgpack:"last_accessed,omitempty"`
	Tier         tier.Tier  `msgpack:"tier"`
	Tags         []string   `msgpack:"tags"`
}

// New constructs an ArchiveRef defaulting to TierWarm, matching Manifest's
// documented default.
func New(id, name string, storage Storage, meta Meta) *ArchiveRef {
	return &ArchiveRef{
		ID:      id,
		Name:    name,
		Storage: storage,
		Meta:    meta,
		Tier:    tier.Warm,
	}
}

// RecalculateTier applies the shared §4.5 rule using the ref's own meta
// timestamps.
func (r *ArchiveRef) RecalculateTier(now time.Time) {
	r.Tier = tier.Compute(r.Meta.UpdatedAt, r.LastAccessed, now)
}

// Touch records an access and recomputes tier.
func (r *ArchiveRef) Touch(now time.Time) {
	r.LastAccessed = &now
	r.RecalculateTier(now)
}
