package storage

import (
	"context"
	"sync"
)

// Memory is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type Memory struct {
	mu         sync.RWMutex
	registrars map[string]Registrar
	snaps      map[string]PricelistSnapshot
	jobs       map[string]JobRun
}

func NewMemory() *Memory {
	return &Memory{
		registrars: make(map[string]Registrar),
		snaps:      make(map[string]PricelistSnapshot),
		jobs:       make(map[string]JobRun),
	}
}

// NewMemoryWithRegistrars seeds the store so default registrars are known
// without needing a database.
func NewMemoryWithRegistrars(rs []Registrar) *Memory {
	m := NewMemory()
	for _, r := range rs {
		m.registrars[r.Key] = r
	}
	return m
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) ListRegistrars(ctx context.Context) ([]Registrar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Registrar, 0, len(m.registrars))
	for _, r := range m.registrars {
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) GetRegistrar(ctx context.Context, key string) (*Registrar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrars[key]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (m *Memory) UpsertRegistrar(ctx context.Context, r Registrar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrars[r.Key] = r
	return nil
}

func (m *Memory) GetPricelistSnapshot(ctx context.Context, registrar string) (*PricelistSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[registrar]
	if !ok {
		return nil, nil
	}
	cp := snap
	return &cp, nil
}

func (m *Memory) SavePricelistSnapshot(ctx context.Context, snap PricelistSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.Registrar] = snap
	return nil
}

func (m *Memory) SaveJobRun(ctx context.Context, job JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.Name] = job
	return nil
}

func (m *Memory) GetJobRun(ctx context.Context, name string) (*JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	cp := j
	return &cp, nil
}
