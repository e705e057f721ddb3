package pricelist

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Common errors shared across adapters.
var (
	// ErrConfiguration marks a missing credential or URL. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstreamFormat marks a structurally wrong source (missing header
	// row, API status not OK, no usable FX rate). Retrying will not fix it.
	ErrUpstreamFormat = errors.New("upstream format error")
	// ErrRegistrarNotFound is returned for unknown registrar keys.
	ErrRegistrarNotFound = errors.New("registrar not found")
)

// Adapter is one registrar price source. Generate runs the adapter's whole
// fetch -> parse -> map pipeline and returns a fresh canonical pricelist;
// caching, TTL policy, metrics and logging live in Service, not in adapters.
type Adapter interface {
	// Key is the unique registrar identifier (e.g. "nira", "namecheap").
	Key() string
	// Name is the human-readable registrar name.
	Name() string
	// Source identifies where prices come from (URL or table name).
	Source() string

	Generate(ctx context.Context) (*Pricelist, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register registers a registrar adapter.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if a == nil {
		panic("pricelist: Register adapter is nil")
	}
	if _, dup := registry[a.Key()]; dup {
		panic("pricelist: Register called twice for registrar " + a.Key())
	}
	registry[a.Key()] = a
}

// Get returns a registered adapter by key.
func Get(key string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[key]
	return a, ok
}

// List returns a sorted list of registered registrar keys.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
