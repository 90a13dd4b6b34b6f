package smartscanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/tier"
)

func TestExtensionScoreMatchesPermittedExtension(t *testing.T) {
	spec := BuiltinProfiles()[ProfileDeveloper]
	require.Equal(t, 1.0, extensionScore(spec, "go"))
	require.Equal(t, 0.5, extensionScore(spec, "png"))
	require.Equal(t, 0.3, extensionScore(spec, ""))
}

func TestExtensionImportanceBlendsFiftyFifty(t *testing.T) {
	spec := BuiltinProfiles()[ProfileDeveloper]
	spec.ExtensionImportance = map[string]float64{"go": 0.0}
	require.Equal(t, 0.5, extensionScore(spec, "go"))
}

func TestRecencyScoreBands(t *testing.T) {
	now := time.Now()
	require.Equal(t, 1.0, recencyScore(now.Add(-time.Hour), now))
	require.Equal(t, 0.9, recencyScore(now.AddDate(0, 0, -3), now))
	require.Equal(t, 0.1, recencyScore(now.AddDate(-2, 0, 0), now))
}

func TestTierForBuckets(t *testing.T) {
	require.Equal(t, tier.Hot, TierFor(0.9))
	require.Equal(t, tier.Warm, TierFor(0.5))
	require.Equal(t, tier.Cold, TierFor(0.1))
}

func TestIgnorePolicyAlwaysIgnoreWinsOverForceInclude(t *testing.T) {
	policy := NewIgnorePolicy([]string{".git/"}, nil, true)
	require.True(t, policy.ShouldIgnore(".git/config", false))
}

func TestIgnorePolicyForceIncludeOverridesDefault(t *testing.T) {
	policy := NewIgnorePolicy([]string{"node_modules/keep.js"}, nil, true)
	require.False(t, policy.ShouldIgnore("node_modules/keep.js", false))
	require.True(t, policy.ShouldIgnore("node_modules/other.js", false))
}

func TestIgnorePolicyHiddenFilePolicy(t *testing.T) {
	policy := NewIgnorePolicy(nil, nil, false)
	require.True(t, policy.ShouldIgnore(".env", false))

	allowHidden := NewIgnorePolicy(nil, nil, true)
	require.False(t, allowHidden.ShouldIgnore(".env", false))
}

func TestScannerScanSkipsIgnoredDirEntirely(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "a.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	spec := BuiltinProfiles()[ProfileDeveloper]
	policy := NewIgnorePolicy(nil, nil, true)
	scanner := New(spec, policy)

	files, err := scanner.Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "main.go", files[0].RelPath)
}

func TestScannerHonorsPerDirectoryIgnoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".cxpignore"), []byte("scratch.go\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	spec := BuiltinProfiles()[ProfileDeveloper]
	policy := NewIgnorePolicy(nil, nil, true)
	scanner := New(spec, policy)

	files, err := scanner.Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "main.go", files[0].RelPath)
}

func TestQuickScanDetectsSignatureAndSamples(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".obsidian"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("hi"), 0o644))

	result, err := QuickScan(root)
	require.NoError(t, err)
	require.Contains(t, result.Signatures, ProfileWriter)
	require.Equal(t, 1, result.ExtensionCounts["md"])
	require.NotEmpty(t, result.SamplePaths)
}

func TestDetectProfilePicksDeveloperForGoFiles(t *testing.T) {
	scan := &QuickScanResult{ExtensionCounts: map[string]int{"go": 20, "md": 1}}
	result := DetectProfile(scan)
	require.Equal(t, ProfileDeveloper, result.Primary)
	require.Greater(t, result.Confidence, 0.5)
}

func TestDetectProfileZeroPrimaryYieldsZeroConfidence(t *testing.T) {
	scan := &QuickScanResult{ExtensionCounts: map[string]int{}}
	result := DetectProfile(scan)
	require.Equal(t, 0.0, result.Confidence)
}
