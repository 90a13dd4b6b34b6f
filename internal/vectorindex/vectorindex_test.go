package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/quantize"
)

func TestAddAndSearchCosineReturnsClosestFirst(t *testing.T) {
	idx := New(DefaultConfig(3, MetricCosine))
	require.NoError(t, idx.Add(1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1, 0}))
	require.NoError(t, idx.Add(3, []float32{0.9, 0.1, 0}))

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].ID)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := New(DefaultConfig(3, MetricCosine))
	err := idx.Add(1, []float32{1, 0})
	require.Error(t, err)
}

func TestDeleteTombstonesResult(t *testing.T) {
	idx := New(DefaultConfig(2, MetricL2Squared))
	require.NoError(t, idx.Add(1, []float32{0, 0}))
	require.NoError(t, idx.Add(2, []float32{100, 100}))

	idx.Delete(1)
	results, err := idx.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, uint64(1), r.ID)
	}
}

func TestSearchEmptyIndexReturnsNil(t *testing.T) {
	idx := New(DefaultConfig(2, MetricCosine))
	results, err := idx.Search([]float32{1, 1}, 5)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.idx")

	idx := New(DefaultConfig(2, MetricInnerProduct))
	require.NoError(t, idx.Add(1, []float32{1, 2}))
	require.NoError(t, idx.Add(2, []float32{3, 4}))
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	results, err := loaded.Search([]float32{1, 2}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDefaultConfigMatchesSpecTuningDefaults(t *testing.T) {
	cfg := DefaultConfig(4, MetricCosine)
	require.Equal(t, 16, cfg.M)
	require.Equal(t, 64, cfg.EfSearch)
	require.Equal(t, 128, cfg.ExpansionAdd)
}

func TestSetExpansionSearchUpdatesGraphAndSearchesStillWork(t *testing.T) {
	idx := New(DefaultConfig(2, MetricL2Squared))
	require.NoError(t, idx.Add(1, []float32{0, 0}))
	require.NoError(t, idx.Add(2, []float32{5, 5}))

	idx.SetExpansionSearch(8)

	results, err := idx.Search([]float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint64(1), results[0].ID)
}

func TestBinaryVectorFromEmbeddingRoundTripsHamming(t *testing.T) {
	e := quantize.BinaryFromFloat([]float32{1, -1, 1, -1})
	vec := BinaryVectorFromEmbedding(e)
	require.Equal(t, []float32{1, 0, 1, 0}, vec)
}
