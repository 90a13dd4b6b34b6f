package smartscanner

import (
	"path"
	"strings"
	"time"

	"github.com/cxparchive/cxp/internal/tier"
)

// FileInfo is the minimal stat view relevance scoring needs.
type FileInfo struct {
	RelPath    string
	Size       int64
	ModifiedAt time.Time
}

func extOf(relPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(relPath), "."))
	return ext
}

// extensionScore implements a 1.0/0.3/0.5 extension-match rule,
// blended 50/50 with spec.ExtensionImportance when the extension has an
// override.
func extensionScore(spec ProfileSpec, ext string) float64 {
	var base float64
	switch {
	case ext == "":
		base = 0.3
	default:
		if _, ok := spec.PermittedExtensions[ext]; ok {
			base = 1.0
		} else {
			base = 0.5
		}
	}

	if override, ok := spec.ExtensionImportance[ext]; ok {
		return 0.5*base + 0.5*override
	}
	return base
}

// recencyScore buckets days-since-modified into the spec's documented bands.
func recencyScore(modifiedAt, now time.Time) float64 {
	days := now.Sub(modifiedAt).Hours() / 24
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.9
	case days <= 30:
		return 0.7
	case days <= 90:
		return 0.5
	case days <= 365:
		return 0.3
	default:
		return 0.1
	}
}

// sizeScore peaks across the 1 KiB-1 MiB sweet spot and falls off on either
// side. The spec leaves the exact falloff shape open; this implementation
// scores 0.2+0.8*ratio, where ratio is size/1 KiB below the sweet spot and
// 1 MiB/size above it, so the score falls toward 0.2 far from the sweet
// spot; a size of zero or less scores 0.1 (matching DESIGN.md's Open
// Question #2 decision).
func sizeScore(size int64) float64 {
	const (
		lowEdge  = 1024
		highEdge = 1024 * 1024
	)
	switch {
	case size >= lowEdge && size <= highEdge:
		return 1.0
	case size < lowEdge:
		if size <= 0 {
			return 0.1
		}
		ratio := float64(size) / float64(lowEdge)
		return clamp(0.2+0.8*ratio, 0.1, 1.0)
	default:
		ratio := float64(highEdge) / float64(size)
		return clamp(0.2+0.8*ratio, 0.1, 1.0)
	}
}

// depthScore penalizes deeper paths, floored at 0.1. relPath is expected
// slash-separated, matching every other component's convention.
func depthScore(relPath string) float64 {
	depth := strings.Count(path.Clean(relPath), "/")
	return clamp(1.0-0.1*float64(depth), 0.1, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Score computes a file's relevance in [0,1] against spec as a weighted sum
// of extension match, recency, size, and depth.
func Score(spec ProfileSpec, info FileInfo, now time.Time) float64 {
	ext := extOf(info.RelPath)
	return 0.4*extensionScore(spec, ext) +
		0.3*recencyScore(info.ModifiedAt, now) +
		0.2*sizeScore(info.Size) +
		0.1*depthScore(info.RelPath)
}

// TierFor buckets a relevance score: >=0.7 Hot, >=0.4 Warm, else Cold.
func TierFor(score float64) tier.Tier {
	switch {
	case score >= 0.7:
		return tier.Hot
	case score >= 0.4:
		return tier.Warm
	default:
		return tier.Cold
	}
}
