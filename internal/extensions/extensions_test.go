package extensions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDataRequiresRegistration(t *testing.T) {
	r := New()
	err := r.WriteData("example", "a.msgpack", []byte{1, 2, 3})
	require.Error(t, err)
}

func TestRegisterWriteReadRoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("example", 1))
	require.NoError(t, r.WriteData("example", "a.msgpack", []byte{1, 2, 3}))
	require.NoError(t, r.WriteData("example", "b.msgpack", []byte{4}))

	data, err := r.ReadData("example", "a.msgpack")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	keys, err := r.ListDataKeys("example")
	require.NoError(t, err)
	require.Equal(t, []string{"a.msgpack", "b.msgpack"}, keys)

	require.Equal(t, []string{"example"}, r.ListExtensions())
}

func TestRegisterIsIdempotentAtSameVersion(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("example", 1))
	require.NoError(t, r.Register("example", 1))
}

func TestRegisterRejectsVersionChange(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("example", 1))
	require.Error(t, r.Register("example", 2))
}

func TestManifestListsSortedKeys(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("example", 1))
	require.NoError(t, r.WriteData("example", "b.msgpack", []byte{4}))
	require.NoError(t, r.WriteData("example", "a.msgpack", []byte{1}))

	m, err := r.Manifest("example")
	require.NoError(t, err)
	require.Equal(t, 1, m.Version)
	require.Equal(t, []string{"a.msgpack", "b.msgpack"}, m.Keys)
}

func TestLoadManifestAndLoadDataRoundTrip(t *testing.T) {
	r := New()
	r.LoadManifest("example", NamespaceManifest{Version: 1, Keys: []string{"a.msgpack"}})

	keys, err := r.ListDataKeys("example")
	require.NoError(t, err)
	require.Equal(t, []string{"a.msgpack"}, keys)

	require.NoError(t, r.LoadData("example", "a.msgpack", []byte{9}))
	data, err := r.ReadData("example", "a.msgpack")
	require.NoError(t, err)
	require.Equal(t, []byte{9}, data)
}

func TestReadMissingKeyFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("example", 1))
	_, err := r.ReadData("example", "missing")
	require.Error(t, err)
}
