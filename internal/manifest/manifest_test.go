package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNewDefaultsToHotAndEmpty(t *testing.T) {
	m := New()
	require.Equal(t, CurrentVersion, m.Version)
	require.Equal(t, TierHot, m.Tier)
	require.Equal(t, 0, m.Children.Len())
	require.NotNil(t, m.FileTypes)
	require.NotNil(t, m.Extensions)
}

func TestAddFileTypeAccumulatesAndCapsSamples(t *testing.T) {
	m := New()
	m.AddFileType("go", "a.go", 100)
	m.AddFileType("go", "b.go", 200)
	m.AddFileType("go", "c.go", 50)
	m.AddFileType("go", "d.go", 50)

	info := m.FileTypes["go"]
	require.Equal(t, 4, info.Count)
	require.Equal(t, int64(400), info.TotalBytes)
	require.Equal(t, "Go", info.Description)
	require.Len(t, info.SamplePaths, maxSamplePaths)
}

func TestDescribeExtensionUnknownFallsBackToUnknown(t *testing.T) {
	require.Equal(t, "Unknown", describeExtension("zzz"))
	require.Equal(t, "Rust", describeExtension("rs"))
}

func TestRegisterExtensionIsIdempotent(t *testing.T) {
	m := New()
	m.RegisterExtension("notes")
	m.RegisterExtension("notes")
	require.Len(t, m.Extensions, 1)
	_, ok := m.Extensions["notes"]
	require.True(t, ok)
}

func TestTouchSetsLastAccessed(t *testing.T) {
	m := New()
	require.Nil(t, m.LastAccessed)
	m.Touch()
	require.NotNil(t, m.LastAccessed)
	require.WithinDuration(t, time.Now(), *m.LastAccessed, time.Second)
}

func TestRecalculateTierStaleGoesCold(t *testing.T) {
	m := New()
	now := time.Now()
	m.UpdatedAt = now.AddDate(0, 0, -90)
	m.RecalculateTier(now)
	require.Equal(t, TierCold, m.Tier)
}

func TestRegisterExtensionRoundTripsThroughMsgpack(t *testing.T) {
	m := New()
	m.RegisterExtension("notes")
	m.RegisterExtension("assets")
	require.Equal(t, []string{"assets", "notes"}, m.ExtensionsList)

	data, err := msgpack.Marshal(m)
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, msgpack.Unmarshal(data, loaded))
	require.Empty(t, loaded.Extensions, "Extensions is not wire-serialized until RebuildExtensionsSet runs")
	require.Equal(t, []string{"assets", "notes"}, loaded.ExtensionsList)

	loaded.RebuildExtensionsSet()
	require.Len(t, loaded.Extensions, 2)
	_, ok := loaded.Extensions["notes"]
	require.True(t, ok)
	_, ok = loaded.Extensions["assets"]
	require.True(t, ok)
}

func TestSetAndGetDescription(t *testing.T) {
	m := New()
	require.Equal(t, "", m.Description())
	m.SetDescription("a test archive")
	require.Equal(t, "a test archive", m.Description())
}
