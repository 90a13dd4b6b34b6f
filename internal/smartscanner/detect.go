package smartscanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cxparchive/cxp/internal/cxperr"
)

const (
	quickScanSampleCap = 500
	quickScanFileCap   = 50000
)

// appSignature is a file or directory name (or suffix) whose presence
// contributes a bonus to one profile's detection score.
type appSignature struct {
	suffix  string
	profile Profile
	bonus   float64
}

var signatures = []appSignature{
	{".lrcat", ProfilePhotographer, 5.0},
	{".cocatalog", ProfilePhotographer, 5.0},
	{".photoslibrary", ProfilePhotographer, 5.0},
	{".obsidian", ProfileWriter, 5.0},
	{".scriv", ProfileWriter, 5.0},
	{".git", ProfileDeveloper, 3.0},
	{".idea", ProfileDeveloper, 3.0},
	{".code-workspace", ProfileDeveloper, 3.0},
	{".fig", ProfileDesigner, 5.0},
	{".sketch", ProfileDesigner, 5.0},
}

// QuickScanResult is the output of a single bounded pass over a directory,
// used as input to profile detection before committing to a full scan.
type QuickScanResult struct {
	ExtensionCounts map[string]int
	SamplePaths     []string
	Signatures      []Profile
	FilesScanned    int
	Truncated       bool
}

// QuickScan counts extensions, samples up to 500 paths, and detects app
// signatures in a single bounded pass, terminating early at 50,000 files
//.
func QuickScan(root string) (*QuickScanResult, error) {
	result := &QuickScanResult{ExtensionCounts: make(map[string]int)}
	seenSignatures := make(map[Profile]struct{})

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if result.FilesScanned >= quickScanFileCap {
			result.Truncated = true
			return filepath.SkipAll
		}

		name := info.Name()
		for _, sig := range signatures {
			if strings.HasSuffix(name, sig.suffix) {
				seenSignatures[sig.profile] = struct{}{}
			}
		}

		if info.IsDir() {
			return nil
		}
		result.FilesScanned++

		ext := extOf(name)
		result.ExtensionCounts[ext]++

		if len(result.SamplePaths) < quickScanSampleCap {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil {
				result.SamplePaths = append(result.SamplePaths, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	for p := range seenSignatures {
		result.Signatures = append(result.Signatures, p)
	}
	return result, nil
}

// extensionWeights scores how strongly an extension count contributes to
// each profile's candidacy.
var extensionWeights = map[Profile]map[string]float64{
	ProfileDeveloper: {
		"go": 1, "rs": 1, "ts": 1, "tsx": 1, "js": 1, "jsx": 1, "py": 1,
		"java": 1, "c": 1, "cpp": 1, "h": 1, "rb": 1, "php": 1, "sh": 0.5,
	},
	ProfilePhotographer: {
		"jpg": 1, "jpeg": 1, "raw": 1.2, "cr2": 1.2, "nef": 1.2, "arw": 1.2, "dng": 1.2, "png": 0.6,
	},
	ProfileDesigner: {
		"fig": 1.2, "sketch": 1.2, "psd": 1.2, "ai": 1.2, "svg": 0.8,
	},
	ProfileWriter: {
		"md": 1, "txt": 0.8, "scriv": 1.2, "doc": 0.6, "docx": 0.6,
	},
	ProfileStudent: {
		"pdf": 0.6, "ipynb": 1, "ppt": 0.6, "pptx": 0.6,
	},
	ProfileBusiness: {
		"xls": 1, "xlsx": 1, "ppt": 0.8, "pptx": 0.8, "csv": 0.6,
	},
}

// DetectionResult ranks every candidate profile by its accumulated score.
type DetectionResult struct {
	Primary    Profile
	Secondary  Profile
	Scores     map[Profile]float64
	Confidence float64
}

// DetectProfile scores each candidate profile by summing per-extension
// weights (times observed count) and signature bonuses, then derives a
// confidence from the gap between the top two scores.
func DetectProfile(scan *QuickScanResult) DetectionResult {
	scores := make(map[Profile]float64)
	for profile := range extensionWeights {
		scores[profile] = 0
	}

	for profile, weights := range extensionWeights {
		for ext, count := range scan.ExtensionCounts {
			if w, ok := weights[ext]; ok {
				scores[profile] += w * float64(count)
			}
		}
	}
	for _, sig := range scan.Signatures {
		for _, s := range signatures {
			if s.profile == sig {
				scores[sig] += s.bonus
			}
		}
	}

	ranked := make([]Profile, 0, len(scores))
	for p := range scores {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i] < ranked[j] })
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })

	result := DetectionResult{Scores: scores}
	if len(ranked) == 0 {
		return result
	}
	result.Primary = ranked[0]
	primaryScore := scores[result.Primary]

	if len(ranked) < 2 {
		result.Confidence = confidenceFor(primaryScore, 0)
		return result
	}
	result.Secondary = ranked[1]
	secondaryScore := scores[result.Secondary]
	result.Confidence = confidenceFor(primaryScore, secondaryScore)
	return result
}

func confidenceFor(primary, secondary float64) float64 {
	if primary == 0 {
		return 0
	}
	if secondary == 0 {
		return 1
	}
	ratio := primary/secondary - 1
	ratio = clamp(ratio, 0, 1)
	return clamp(ratio*0.5+0.5, 0, 1)
}
