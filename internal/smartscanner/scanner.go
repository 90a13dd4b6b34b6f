package smartscanner

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/tier"
)

// ScoredFile is one file the scan accepted, carrying its computed relevance
// and tier.
type ScoredFile struct {
	RelPath string
	Size    int64
	Score   float64
	Tier    tier.Tier
}

// Scanner walks a directory applying an IgnorePolicy and ProfileSpec to
// score and bucket every surviving file.
type Scanner struct {
	policy     *IgnorePolicy
	spec       ProfileSpec
	ignoreFile *dirIgnoreCache
}

// New constructs a Scanner for the given profile and ignore policy.
func New(spec ProfileSpec, policy *IgnorePolicy) *Scanner {
	return &Scanner{spec: spec, policy: policy, ignoreFile: newDirIgnoreCache()}
}

// Scan walks root depth-first, skipping ignored directories entirely (so
// their contents are never visited), and scores every retained file. Each
// directory's .cxpignore file, if any, is matched against the names of that
// directory's direct entries only; its patterns are not applied to entries
// further down, though a subdirectory it ignores is skipped with all of its
// contents.
func (s *Scanner) Scan(root string) ([]ScoredFile, error) {
	now := time.Now()
	var out []ScoredFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		localIgnore := s.ignoreFile.forDir(filepath.Dir(path))
		name := filepath.Base(path)

		if info.IsDir() {
			if s.policy.ShouldIgnore(rel, true) || localIgnore.Match(name, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.policy.ShouldIgnore(rel, false) || localIgnore.Match(name, false) {
			return nil
		}
		if s.spec.MaxFileSize > 0 && info.Size() > s.spec.MaxFileSize {
			return nil
		}

		fi := FileInfo{RelPath: rel, Size: info.Size(), ModifiedAt: info.ModTime()}
		score := Score(s.spec, fi, now)
		out = append(out, ScoredFile{
			RelPath: rel,
			Size:    info.Size(),
			Score:   score,
			Tier:    TierFor(score),
		})
		return nil
	})
	if err != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
