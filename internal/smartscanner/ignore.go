package smartscanner

import (
	"path/filepath"
	"strings"

	"github.com/cxparchive/cxp/internal/ignorerules"
)

// alwaysIgnore can never be overridden by force_include or user customs
//.
var alwaysIgnore = ignorerules.NewFromPatterns([]string{
	".git/",
	".cxp-tmp/",
	"*.cxp.tmp",
	ignoreFileName,
})

// defaultIgnore is the baseline ignore list every scan applies unless a
// force_include rule wins first.
var defaultIgnore = ignorerules.NewFromPatterns([]string{
	"node_modules/",
	".venv/",
	"venv/",
	"__pycache__/",
	"target/",
	"dist/",
	"build/",
	".DS_Store",
	"*.tmp",
	"*.log",
})

// IgnorePolicy layers four ignore-rule tiers:
// ALWAYS_IGNORE (never overridable) -> force_include (wins over the next
// two) -> DEFAULT_IGNORE plus user customs -> hidden-file policy.
type IgnorePolicy struct {
	forceInclude  *ignorerules.GlobSet
	customIgnore  *ignorerules.GlobSet
	includeHidden bool
}

// NewIgnorePolicy builds a policy from user-supplied force-include and
// custom-ignore globs.
func NewIgnorePolicy(forceInclude, customIgnore []string, includeHidden bool) *IgnorePolicy {
	return &IgnorePolicy{
		forceInclude:  ignorerules.NewFromPatterns(forceInclude),
		customIgnore:  ignorerules.NewFromPatterns(customIgnore),
		includeHidden: includeHidden,
	}
}

// ShouldIgnore applies the priority chain to relPath (slash-separated,
// relative to the scan root).
func (p *IgnorePolicy) ShouldIgnore(relPath string, isDir bool) bool {
	if alwaysIgnore.Match(relPath, isDir) {
		return true
	}
	if p.forceInclude.Match(relPath, isDir) {
		return false
	}
	if defaultIgnore.Match(relPath, isDir) || p.customIgnore.Match(relPath, isDir) {
		return true
	}
	if !p.includeHidden && isHidden(relPath) {
		return true
	}
	return false
}

func isHidden(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
