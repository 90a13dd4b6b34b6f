package globalindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/tier"
)

func sampleEntry(containerID, path, name, ext string, t tier.Tier) Entry {
	return Entry{
		ContainerID:   containerID,
		ContainerPath: []string{"root", containerID},
		FilePath:      path,
		FileName:      name,
		FileType:      ext,
		FileSize:      100,
		Keywords:      []string{"widget", "factory", "handler"},
		Tier:          t,
		ModifiedAt:    time.Now(),
	}
}

func TestIngestAndSearchFindsByFilename(t *testing.T) {
	idx := New()
	idx.IngestFile(sampleEntry("c1", "src/widget.go", "widget.go", "go", tier.Warm))
	idx.IngestFile(sampleEntry("c1", "src/other.go", "other.go", "go", tier.Warm))

	results := idx.Search("widget", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "widget.go", results[0].Entry.FileName)
}

func TestTierWeightingOrdersHotAboveWarmAboveCold(t *testing.T) {
	idx := New()
	idx.IngestFile(sampleEntry("hot", "a/widget.go", "widget.go", "go", tier.Hot))
	idx.IngestFile(sampleEntry("warm", "b/widget.go", "widget.go", "go", tier.Warm))
	idx.IngestFile(sampleEntry("cold", "c/widget.go", "widget.go", "go", tier.Cold))

	results := idx.Search("widget", 10)
	require.Len(t, results, 3)
	require.Equal(t, "hot", results[0].Entry.ContainerID)
	require.Equal(t, "warm", results[1].Entry.ContainerID)
	require.Equal(t, "cold", results[2].Entry.ContainerID)
	require.Greater(t, results[0].Score, results[1].Score)
	require.Greater(t, results[1].Score, results[2].Score)
}

func TestRemoveContainerThenCompactDropsEntries(t *testing.T) {
	idx := New()
	idx.IngestFile(sampleEntry("c1", "a.go", "a.go", "go", tier.Warm))
	idx.IngestFile(sampleEntry("c2", "b.go", "b.go", "go", tier.Warm))
	require.Equal(t, 2, idx.Len())

	idx.RemoveContainer([]string{"root", "c1"})
	require.Equal(t, 2, idx.Len()) // tombstoned, not yet compacted

	results := idx.Search("a.go", 10)
	for _, r := range results {
		require.NotEqual(t, "c1", r.Entry.ContainerID)
	}

	idx.Compact()
	require.Equal(t, 1, idx.Len())
	require.Equal(t, "c2", idx.entries[0].ContainerID)
}

func TestMarshalUnmarshalRoundTripsAndRebuildsIndices(t *testing.T) {
	idx := New()
	idx.IngestFile(sampleEntry("c1", "a.go", "a.go", "go", tier.Hot))
	idx.IngestFile(sampleEntry("c2", "b.md", "b.md", "md", tier.Cold))

	data, err := idx.Marshal()
	require.NoError(t, err)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), loaded.Len())

	results := loaded.Search("a.go", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "c1", results[0].Entry.ContainerID)
}

func TestSearchByTypeFiltersToExactType(t *testing.T) {
	idx := New()
	idx.IngestFile(sampleEntry("c1", "a.go", "a.go", "go", tier.Warm))
	idx.IngestFile(sampleEntry("c2", "b.md", "widget.md", "md", tier.Warm))

	results := idx.SearchByType("widget", "md", 10)
	require.Len(t, results, 1)
	require.Equal(t, "md", results[0].Entry.FileType)
}

func TestEmbeddingHashDeterministic(t *testing.T) {
	v := []float32{1, -1, 0.5, -0.5, 2, -2, 0.1, -0.1}
	h1 := EmbeddingHash(v)
	h2 := EmbeddingHash(v)
	require.Equal(t, h1, h2)
}
