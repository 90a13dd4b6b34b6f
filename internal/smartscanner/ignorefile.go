package smartscanner

import (
	"bufio"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cxparchive/cxp/internal/ignorerules"
)

// ignoreFileCacheSize bounds the per-directory .cxpignore cache, matching
// the teacher's gitignore-matcher cache size.
const ignoreFileCacheSize = 1000

// ignoreFileName is the per-directory custom ignore file a scan honors in
// addition to the policy's global custom-ignore globs.
const ignoreFileName = ".cxpignore"

// dirIgnoreCache caches compiled per-directory .cxpignore GlobSets so a
// deep tree with many directories doesn't recompile the same file's
// patterns on every descent, mirroring the teacher's
// gitignoreCache *lru.Cache[string, *gitignore.Matcher] (internal/scanner).
type dirIgnoreCache struct {
	cache *lru.Cache[string, *ignorerules.GlobSet]
}

func newDirIgnoreCache() *dirIgnoreCache {
	cache, err := lru.New[string, *ignorerules.GlobSet](ignoreFileCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the fixed constant above.
		panic(err)
	}
	return &dirIgnoreCache{cache: cache}
}

// forDir returns the compiled GlobSet for dir's .cxpignore file, reading
// and compiling it on first access and reusing the LRU-cached result
// afterward. A directory with no .cxpignore caches an empty GlobSet.
func (c *dirIgnoreCache) forDir(dir string) *ignorerules.GlobSet {
	if set, ok := c.cache.Get(dir); ok {
		return set
	}

	set := ignorerules.New()
	if patterns, err := readIgnoreFile(filepath.Join(dir, ignoreFileName)); err == nil {
		for _, p := range patterns {
			set.Add(p)
		}
	}
	c.cache.Add(dir, set)
	return set
}

func readIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	return patterns, scanner.Err()
}
