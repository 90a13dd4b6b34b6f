// Package recursivebuilder implements the Recursive Builder: it walks
// a source tree, nominates directories large or populous enough to deserve
// their own archive, materializes each nomination with container.Writer,
// and assembles a master archive referencing every child.
//
// Grounded on the teacher's scanner.Scanner walk (internal/scanner/scanner.go)
// for the depth-first directory traversal shape, generalized from "find
// indexable files" to "propose archive boundaries".
package recursivebuilder

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cxparchive/cxp/internal/archiveref"
	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/cxpconfig"
	"github.com/cxparchive/cxp/internal/globalindex"
	"github.com/cxparchive/cxp/internal/tier"
)

// Config holds the nomination thresholds for promoting a directory to its
// own child archive.
type Config struct {
	MinSizeForChild  int64
	MinFilesForChild int
	MaxDepth         int
	IgnoredDirs      map[string]struct{}
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSizeForChild:  10 * 1024 * 1024,
		MinFilesForChild: 50,
		MaxDepth:         10,
		IgnoredDirs:      defaultIgnoredDirs(),
	}
}

func defaultIgnoredDirs() map[string]struct{} {
	names := []string{"node_modules", ".git", "target", "dist", "build", ".svn", ".hg"}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// DirStats summarizes one directory's contribution, aggregated bottom-up
// from every file and non-nominated subdirectory beneath it.
type DirStats struct {
	FileCount    int
	TotalSize    int64
	SubdirCount  int
	ExtHistogram map[string]int
	NewestMTime  time.Time
}

func newDirStats() DirStats {
	return DirStats{ExtHistogram: make(map[string]int)}
}

func (s *DirStats) merge(o DirStats) {
	s.FileCount += o.FileCount
	s.TotalSize += o.TotalSize
	if o.NewestMTime.After(s.NewestMTime) {
		s.NewestMTime = o.NewestMTime
	}
	for ext, n := range o.ExtHistogram {
		s.ExtHistogram[ext] += n
	}
}

// Proposal is one nominated (or root) directory in the hierarchy the
// builder will materialize. RelPath is "" for the tree root.
type Proposal struct {
	RelPath  string
	Name     string
	Stats    DirStats
	Tier     tier.Tier
	Children []*Proposal
}

// Builder walks a source tree and proposes, then materializes, the archive
// hierarchy.
type Builder struct {
	cfg     Config
	cxpCfg  cxpconfig.Config
	textCfg bool // with_images passthrough
}

// New constructs a Builder with the given nomination thresholds.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg, cxpCfg: cxpconfig.Default()}
}

// WithImages opts every materialized child archive into image scanning.
func (b *Builder) WithImages() *Builder {
	b.textCfg = true
	return b
}

// WithConfig overrides the chunker/compress/embeddings tuning applied to
// every materialized child archive.
func (b *Builder) WithConfig(cfg cxpconfig.Config) *Builder {
	b.cxpCfg = cfg
	return b
}

// Analyze walks root depth-first, computing per-directory stats and
// nominating directories as their own child archive when they meet either
// threshold; directories beyond max_depth always collapse into their parent
// regardless of size.
func (b *Builder) Analyze(root string) (*Proposal, error) {
	stats, children, err := b.analyzeDir(root, "", 0)
	if err != nil {
		return nil, err
	}
	return &Proposal{
		RelPath:  "",
		Name:     filepath.Base(root),
		Stats:    stats,
		Tier:     tierFor(stats.NewestMTime),
		Children: children,
	}, nil
}

func (b *Builder) analyzeDir(absRoot, relPath string, depth int) (DirStats, []*Proposal, error) {
	absPath := filepath.Join(absRoot, filepath.FromSlash(relPath))
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return DirStats{}, nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}

	own := newDirStats()
	var nominatedChildren []*Proposal

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if _, ignored := b.cfg.IgnoredDirs[name]; ignored {
				continue
			}
			own.SubdirCount++

			childRel := joinRel(relPath, name)
			childStats, grandchildren, walkErr := b.analyzeDir(absRoot, childRel, depth+1)
			if walkErr != nil {
				return DirStats{}, nil, walkErr
			}

			if depth+1 <= b.cfg.MaxDepth && nominates(childStats, b.cfg) {
				nominatedChildren = append(nominatedChildren, &Proposal{
					RelPath:  childRel,
					Name:     name,
					Stats:    childStats,
					Tier:     tierFor(childStats.NewestMTime),
					Children: grandchildren,
				})
				continue
			}

			// Not nominated (too small, or past max_depth): its files flow
			// into this directory's own aggregate, and any of ITS
			// grandchildren that were independently nominated still get
			// promoted up as this directory's own children so they are
			// never silently dropped.
			own.merge(childStats)
			nominatedChildren = append(nominatedChildren, grandchildren...)
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return DirStats{}, nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, infoErr)
		}
		own.FileCount++
		own.TotalSize += info.Size()
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if ext != "" {
			own.ExtHistogram[ext]++
		}
		if info.ModTime().After(own.NewestMTime) {
			own.NewestMTime = info.ModTime()
		}
	}

	return own, nominatedChildren, nil
}

func nominates(s DirStats, cfg Config) bool {
	return s.TotalSize >= cfg.MinSizeForChild || s.FileCount >= cfg.MinFilesForChild
}

func joinRel(relPath, name string) string {
	if relPath == "" {
		return name
	}
	return relPath + "/" + name
}

func tierFor(newest time.Time) tier.Tier {
	if newest.IsZero() {
		return tier.Cold
	}
	return tier.Compute(newest, nil, time.Now())
}

// BuildResult is one materialized archive (root's own leftover content, or a
// nominated descendant), ready to register with the Archive Manager.
type BuildResult struct {
	Ref          *archiveref.ArchiveRef
	PathSegments []string
	ArchivePath  string
}

// Build recursively materializes proposal's nominated children (and, if the
// proposal itself has any directly-owned content, the proposal itself) with
// container.Writer under outputDir, accumulating ArchiveRefs). parentPathSegments names the ancestor chain for each result's
// container_path.
func (b *Builder) Build(ctx context.Context, sourceRoot, outputDir string, proposal *Proposal, parentPathSegments []string) ([]BuildResult, error) {
	var results []BuildResult

	pathSegments := append(append([]string{}, parentPathSegments...), proposal.Name)

	if proposal.Stats.FileCount > 0 {
		res, err := b.buildOne(ctx, sourceRoot, outputDir, proposal, pathSegments, excludedSubtrees(proposal.RelPath, proposal.Children))
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}

	for _, child := range proposal.Children {
		childResults, err := b.Build(ctx, sourceRoot, outputDir, child, pathSegments)
		if err != nil {
			return nil, err
		}
		results = append(results, childResults...)
	}

	return results, nil
}

// excludedSubtrees returns each child's path relative to parentRelPath
// (rather than to the analyzed root), matching the Scan()-relative paths
// buildOne filters against.
func excludedSubtrees(parentRelPath string, children []*Proposal) []string {
	out := make([]string, len(children))
	for i, c := range children {
		rel := strings.TrimPrefix(c.RelPath, parentRelPath)
		rel = strings.TrimPrefix(rel, "/")
		out[i] = rel
	}
	return out
}

// buildOne materializes one archive covering proposal's subtree, excluding
// any nested paths already claimed by a nominated descendant.
func (b *Builder) buildOne(ctx context.Context, sourceRoot, outputDir string, proposal *Proposal, pathSegments []string, excluded []string) (*BuildResult, error) {
	absDir := filepath.Join(sourceRoot, filepath.FromSlash(proposal.RelPath))

	w := container.New(absDir)
	if b.textCfg {
		w = w.WithImages()
	}
	w = w.WithConfig(b.cxpCfg)

	retained, err := w.Scan()
	if err != nil {
		return nil, err
	}
	retained = filterExcluded(retained, excluded)

	if err := w.Process(retained); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	archivePath := filepath.Join(outputDir, id+".cxp")
	if err := w.Build(ctx, archivePath); err != nil {
		return nil, err
	}

	info, statErr := os.Stat(archivePath)
	if statErr != nil {
		return nil, cxperr.Wrap(cxperr.ErrCodeIOFailure, statErr)
	}

	meta := archiveref.Meta{
		TotalFiles:        proposal.Stats.FileCount,
		SizeBytes:         info.Size(),
		OriginalSizeBytes: proposal.Stats.TotalSize,
		CreatedAt:         time.Now(),
		UpdatedAt:         proposal.Stats.NewestMTime,
		FileTypes:         proposal.Stats.ExtHistogram,
		HasEmbeddings:     false,
	}

	ref := archiveref.New(id, proposal.Name, archiveref.External(archivePath), meta)
	ref.Tier = proposal.Tier

	return &BuildResult{
		Ref:          ref,
		PathSegments: pathSegments,
		ArchivePath:  archivePath,
	}, nil
}

func filterExcluded(paths []string, excluded []string) []string {
	if len(excluded) == 0 {
		return paths
	}
	prefixes := make([]string, len(excluded))
	for i, e := range excluded {
		prefixes[i] = e + "/"
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		skip := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(p, prefix) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}

// BuildMaster writes a header-only container at outputPath holding a
// Hot-tier manifest and the serialized Global Index as an extension payload
//; child archives remain separate files.
func BuildMaster(ctx context.Context, outputPath string, results []BuildResult, idx *globalindex.Index) error {
	emptyDir, err := os.MkdirTemp("", "cxp-master-*")
	if err != nil {
		return cxperr.Wrap(cxperr.ErrCodeIOFailure, err)
	}
	defer os.RemoveAll(emptyDir)

	w := container.New(emptyDir)
	retained, err := w.Scan()
	if err != nil {
		return err
	}
	if err := w.Process(retained); err != nil {
		return err
	}

	idxData, err := idx.Marshal()
	if err != nil {
		return err
	}
	if err := w.AddExtension("global_index", map[string][]byte{"index.msgpack": idxData}); err != nil {
		return err
	}

	childPayload := make(map[string][]byte, len(results))
	for _, res := range results {
		childPayload[res.Ref.ID] = []byte(res.ArchivePath)
	}
	if err := w.AddExtension("children", childPayload); err != nil {
		return err
	}

	return w.Build(ctx, outputPath)
}

// ProjectKind tags a detected project layout.
type ProjectKind string

const (
	ProjectNode    ProjectKind = "node"
	ProjectRust    ProjectKind = "rust"
	ProjectPython  ProjectKind = "python"
	ProjectGo      ProjectKind = "go"
	ProjectGeneric ProjectKind = "generic"
)

var projectMarkers = []struct {
	file        string
	kind        ProjectKind
	ignoreAdded []string
}{
	{"package.json", ProjectNode, []string{"node_modules", ".npm", "dist", "build"}},
	{"Cargo.toml", ProjectRust, []string{"target"}},
	{"requirements.txt", ProjectPython, []string{"__pycache__", ".venv", "venv"}},
	{"pyproject.toml", ProjectPython, []string{"__pycache__", ".venv", "venv"}},
	{"go.mod", ProjectGo, []string{"vendor"}},
}

// DetectProjectPattern inspects dir for known project markers
// (package.json, Cargo.toml, requirements.txt, pyproject.toml, go.mod, or a
// src directory) and returns the detected kind plus the directory names its
// kind contributes to the ignore list.
func DetectProjectPattern(dir string) (ProjectKind, []string) {
	var kinds []ProjectKind
	ignoreSet := map[string]struct{}{}

	for _, marker := range projectMarkers {
		if fileExists(filepath.Join(dir, marker.file)) {
			kinds = append(kinds, marker.kind)
			for _, d := range marker.ignoreAdded {
				ignoreSet[d] = struct{}{}
			}
		}
	}

	if len(kinds) == 0 {
		if dirExists(filepath.Join(dir, "src")) {
			return ProjectGeneric, nil
		}
		return ProjectGeneric, nil
	}

	ignore := make([]string, 0, len(ignoreSet))
	for d := range ignoreSet {
		ignore = append(ignore, d)
	}
	sort.Strings(ignore)

	return kinds[0], ignore
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Description returns a human-readable summary, used for log lines.
func (p *Proposal) Description() string {
	return p.Tier.String() + " " + p.Name
}
