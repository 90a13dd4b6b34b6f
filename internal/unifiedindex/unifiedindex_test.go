package unifiedindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/vectorindex"
)

func TestAddTextAndImageThenSearchAttachesMetadata(t *testing.T) {
	idx := New(vectorindex.New(vectorindex.DefaultConfig(2, vectorindex.MetricCosine)))
	require.NoError(t, idx.AddText(0, []float32{1, 0}, "chunkhash1", "a.go"))
	require.NoError(t, idx.AddImage(1, []float32{0, 1}, "b.png"))

	results, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(0), results[0].ID)
	require.Equal(t, KindText, results[0].Meta.Kind)
	require.Equal(t, "chunkhash1", results[0].Meta.ChunkID)
}

func TestSearchTextOnlyFiltersOutImages(t *testing.T) {
	idx := New(vectorindex.New(vectorindex.DefaultConfig(2, vectorindex.MetricCosine)))
	require.NoError(t, idx.AddImage(0, []float32{1, 0}, "a.png"))
	require.NoError(t, idx.AddText(1, []float32{0.9, 0.1}, "chunkhash2", "b.go"))
	require.NoError(t, idx.AddImage(2, []float32{0.8, 0.2}, "c.png"))

	results, err := idx.SearchTextOnly([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, KindText, results[0].Meta.Kind)
}

func TestSearchMultimodalDefaultsToAllForUnknownFilter(t *testing.T) {
	idx := New(vectorindex.New(vectorindex.DefaultConfig(2, vectorindex.MetricCosine)))
	require.NoError(t, idx.AddText(0, []float32{1, 0}, "h", "a.go"))
	require.NoError(t, idx.AddImage(1, []float32{0, 1}, "a.png"))

	results, err := idx.SearchMultimodal([]float32{1, 1}, 2, Filter("bogus"))
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unified")

	idx := New(vectorindex.New(vectorindex.DefaultConfig(2, vectorindex.MetricCosine)))
	require.NoError(t, idx.AddText(0, []float32{1, 0}, "h1", "a.go"))
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())

	results, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, "a.go", results[0].Meta.FilePath)
}
