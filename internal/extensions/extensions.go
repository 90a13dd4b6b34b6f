// Package extensions implements the Extension Registry: a namespaced
// key/value store for opaque plugin payloads. Reserved namespace names
// coincide with the archive's extensions/<namespace>/ directory segments
//.
package extensions

import (
	"sort"

	"github.com/cxparchive/cxp/internal/cxperr"
)

// NamespaceManifest is the per-namespace manifest written to
// extensions/<namespace>/manifest.msgpack: a version stamp plus the sorted
// list of keys a Reader can fetch without touching the data itself.
type NamespaceManifest struct {
	Version int      `msgpack:"version"`
	Keys    []string `msgpack:"keys"`
}

type namespaceState struct {
	version int
	data    map[string][]byte
	order   []string
}

// Registry is the Writer/Reader-owned namespace store. It is single-owner
// so it carries no internal locking.
type Registry struct {
	namespaces map[string]*namespaceState
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{namespaces: make(map[string]*namespaceState)}
}

// Register declares namespace at version. Re-registering the same namespace
// at the same version is a no-op; a version change is rejected to keep a
// namespace's manifest stable for the life of one archive.
func (r *Registry) Register(namespace string, version int) error {
	if existing, ok := r.namespaces[namespace]; ok {
		if existing.version != version {
			return cxperr.New(cxperr.ErrCodeMalformedArchive,
				"namespace "+namespace+" already registered at a different version", nil)
		}
		return nil
	}
	r.namespaces[namespace] = &namespaceState{version: version, data: make(map[string][]byte)}
	return nil
}

// WriteData stores bytes under (namespace, key). Fails unless namespace is
// already registered.
func (r *Registry) WriteData(namespace, key string, data []byte) error {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return cxperr.New(cxperr.ErrCodeNamespaceUnset, "namespace "+namespace+" not registered", nil)
	}
	if _, exists := ns.data[key]; !exists {
		ns.order = append(ns.order, key)
	}
	ns.data[key] = data
	return nil
}

// ReadData returns the bytes stored at (namespace, key).
func (r *Registry) ReadData(namespace, key string) ([]byte, error) {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeNamespaceUnset, "namespace "+namespace+" not registered", nil)
	}
	data, ok := ns.data[key]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeKeyNotFound, "key "+key+" not found in namespace "+namespace, nil)
	}
	return data, nil
}

// ListExtensions returns all registered namespace names, sorted.
func (r *Registry) ListExtensions() []string {
	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// ListDataKeys returns the keys written under namespace, in write order.
func (r *Registry) ListDataKeys(namespace string) ([]string, error) {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return nil, cxperr.New(cxperr.ErrCodeNamespaceUnset, "namespace "+namespace+" not registered", nil)
	}
	out := make([]string, len(ns.order))
	copy(out, ns.order)
	return out, nil
}

// Manifest builds the serializable NamespaceManifest for namespace.
func (r *Registry) Manifest(namespace string) (NamespaceManifest, error) {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return NamespaceManifest{}, cxperr.New(cxperr.ErrCodeNamespaceUnset, "namespace "+namespace+" not registered", nil)
	}
	keys := make([]string, len(ns.order))
	copy(keys, ns.order)
	sort.Strings(keys)
	return NamespaceManifest{Version: ns.version, Keys: keys}, nil
}

// LoadManifest hydrates namespace metadata from a manifest read back from
// disk, without any data bytes. Used by the Reader on open() to populate
// list_extensions/list_data_keys lazily.
func (r *Registry) LoadManifest(namespace string, m NamespaceManifest) {
	r.namespaces[namespace] = &namespaceState{version: m.Version, data: make(map[string][]byte), order: m.Keys}
}

// LoadData installs previously-fetched bytes for (namespace, key) into the
// in-memory cache, used by the Reader's lazy per-key fetch. Idempotent.
func (r *Registry) LoadData(namespace, key string, data []byte) error {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return cxperr.New(cxperr.ErrCodeNamespaceUnset, "namespace "+namespace+" not registered", nil)
	}
	ns.data[key] = data
	return nil
}
