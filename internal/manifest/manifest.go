// Package manifest holds the archive-wide metadata: stats, per-extension
// file-type summaries, declared extensions, the child-archive map, and the
// tier/access bookkeeping shared with archiveref.
package manifest

import (
	"sort"
	"time"

	"github.com/cxparchive/cxp/internal/tier"
)

// Tier re-exports tier.Tier so manifest callers don't need a second import.
type Tier = tier.Tier

const (
	TierHot  = tier.Hot
	TierWarm = tier.Warm
	TierCold = tier.Cold
)

// Stats summarizes an archive's size and dedup effectiveness.
type Stats struct {
	TotalFiles            int     `msgpack:"total_files"`
	UniqueChunks          int     `msgpack:"unique_chunks"`
	OriginalSize          int64   `msgpack:"original_size"`
	ArchiveSize           int64   `msgpack:"archive_size"`
	CompressionRatio      float64 `msgpack:"compression_ratio"`
	DedupSavingsPercent   float64 `msgpack:"dedup_savings_percent"`
}

// FileTypeInfo tracks a single extension's footprint in the archive.
type FileTypeInfo struct {
	Count       int      `msgpack:"count"`
	Description string   `msgpack:"description"`
	SamplePaths []string `msgpack:"sample_paths"`
	TotalBytes  int64    `msgpack:"total_bytes"`
}

const maxSamplePaths = 3

// Manifest is the archive-wide metadata record.
type Manifest struct {
	Version   int       `msgpack:"version"`
	CreatedAt time.Time `msgpack:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at"`

	Stats     Stats                   `msgpack:"stats"`
	FileTypes map[string]*FileTypeInfo `msgpack:"file_types"`

	Topics []string `msgpack:"topics"`

	EmbeddingModel *string `msgpack:"embedding_model,omitempty"`
	EmbeddingDim   *int    `msgpack:"embedding_dim,omitempty"`

	Extensions map[string]struct{} `msgpack:"-"`
	// ExtensionsList is Extensions serialized as a sorted slice (MessagePack
	// has no native set type).
	ExtensionsList []string `msgpack:"extensions"`

	Metadata map[string]string `msgpack:"metadata"`

	Children ChildrenMap `msgpack:"children"`

	ParentPath *[]string `msgpack:"parent_path,omitempty"`

	Tier       Tier     `msgpack:"tier"`
	Categories []string `msgpack:"categories"`
	Keywords   []string `msgpack:"keywords"`

	LastAccessed *time.Time `msgpack:"last_accessed,omitempty"`

	// description is an optional free-text summary, carried over from the
	// original Rust Manifest but dropped from spec.md's distillation.
	description string
}

// CurrentVersion is the manifest format's major version.
const CurrentVersion = 1

// New creates an empty, sealed-later Manifest for a fresh build.
func New() *Manifest {
	now := time.Now()
	return &Manifest{
		Version:    CurrentVersion,
		CreatedAt:  now,
		UpdatedAt:  now,
		FileTypes:  make(map[string]*FileTypeInfo),
		Extensions: make(map[string]struct{}),
		Metadata:   make(map[string]string),
		Children:   NewChildrenMap(),
		Tier:       TierHot,
	}
}

// SetDescription sets the optional free-text summary.
func (m *Manifest) SetDescription(d string) { m.description = d }

// Description returns the optional free-text summary.
func (m *Manifest) Description() string { return m.description }

// AddFileType registers one more file of extension ext at samplePath with
// size bytes, accumulating count/bytes and keeping up to 3 sample paths.
func (m *Manifest) AddFileType(ext, samplePath string, size int64) {
	info, ok := m.FileTypes[ext]
	if !ok {
		info = &FileTypeInfo{Description: describeExtension(ext)}
		m.FileTypes[ext] = info
	}
	info.Count++
	info.TotalBytes += size
	if len(info.SamplePaths) < maxSamplePaths {
		info.SamplePaths = append(info.SamplePaths, samplePath)
	}
	m.UpdatedAt = time.Now()
}

// RegisterExtension records namespace in the extensions set and syncs
// ExtensionsList, the wire-serialized form, so the set round-trips through
// msgpack (MessagePack has no native set type).
func (m *Manifest) RegisterExtension(namespace string) {
	if m.Extensions == nil {
		m.Extensions = make(map[string]struct{})
	}
	m.Extensions[namespace] = struct{}{}
	m.syncExtensionsList()
}

// syncExtensionsList rebuilds ExtensionsList as a sorted slice of Extensions.
func (m *Manifest) syncExtensionsList() {
	list := make([]string, 0, len(m.Extensions))
	for ns := range m.Extensions {
		list = append(list, ns)
	}
	sort.Strings(list)
	m.ExtensionsList = list
}

// RebuildExtensionsSet repopulates Extensions from ExtensionsList. msgpack
// only serializes ExtensionsList (Extensions is tagged "-"), so callers must
// call this once after unmarshaling a Manifest off the wire.
func (m *Manifest) RebuildExtensionsSet() {
	m.Extensions = make(map[string]struct{}, len(m.ExtensionsList))
	for _, ns := range m.ExtensionsList {
		m.Extensions[ns] = struct{}{}
	}
}

// Touch records an access, used by Tier computation.
func (m *Manifest) Touch() {
	now := time.Now()
	m.LastAccessed = &now
}

// RecalculateTier applies the §4.5 scoring rule using now as the reference
// time: score = 0.7*days_since_modified + 0.3*days_since_accessed (accessed
// defaults to 365 days when never touched).
func (m *Manifest) RecalculateTier(now time.Time) {
	m.Tier = tier.Compute(m.UpdatedAt, m.LastAccessed, now)
}

// extensionDescriptions maps lowercase extensions to a human label, used for
// the manifest.file_types description field (spec scenario 3).
var extensionDescriptions = map[string]string{
	"rs": "Rust", "ts": "TypeScript", "tsx": "TypeScript", "js": "JavaScript",
	"jsx": "JavaScript", "py": "Python", "go": "Go", "java": "Java",
	"c": "C", "cpp": "C++", "h": "C Header", "hpp": "C++ Header",
	"cs": "C#", "rb": "Ruby", "php": "PHP", "swift": "Swift", "kt": "Kotlin",
	"scala": "Scala", "r": "R", "sql": "SQL", "sh": "Shell", "bash": "Shell",
	"zsh": "Shell", "ps1": "PowerShell", "bat": "Batch", "cmd": "Batch",
	"json": "JSON", "yaml": "YAML", "yml": "YAML", "toml": "TOML",
	"xml": "XML", "ini": "INI", "env": "Environment", "conf": "Config",
	"config": "Config", "md": "Markdown", "mdx": "Markdown", "txt": "Text",
	"rst": "reStructuredText", "adoc": "AsciiDoc", "tex": "LaTeX",
	"html": "HTML", "htm": "HTML", "css": "CSS", "scss": "Sass",
	"sass": "Sass", "less": "Less", "vue": "Vue", "svelte": "Svelte",
	"csv": "CSV", "tsv": "TSV",
	"png": "PNG Image", "jpg": "JPEG Image", "jpeg": "JPEG Image",
	"gif": "GIF Image", "webp": "WebP Image", "bmp": "Bitmap Image",
	"tiff": "TIFF Image", "tif": "TIFF Image",
}

func describeExtension(ext string) string {
	if desc, ok := extensionDescriptions[ext]; ok {
		return desc
	}
	return "Unknown"
}
