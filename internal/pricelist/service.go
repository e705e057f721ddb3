package pricelist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/namewiz/registrar-pricelist/internal/metrics"
	"github.com/namewiz/registrar-pricelist/internal/storage"
)

// TTLForever makes Get reuse any existing snapshot without a staleness
// check. A TTL of zero disables reuse entirely; a positive TTL reuses a
// snapshot only while its age is within the TTL.
const TTLForever = time.Duration(-1)

// Service coordinates generating and caching registrar pricelists. Adapters
// produce fresh lists; the service owns the snapshot cache and the TTL
// policy so the per-source pipelines stay cache-free.
type Service struct {
	store storage.Storage // may be nil: generate-only mode
	ttl   time.Duration
}

func NewService(ttl time.Duration) *Service {
	return &Service{ttl: ttl}
}

func NewServiceWithStorage(ttl time.Duration, st storage.Storage) *Service {
	return &Service{ttl: ttl, store: st}
}

// Get returns the pricelist for a registrar, reusing a cached snapshot when
// the TTL policy allows, generating and caching a fresh one otherwise.
func (s *Service) Get(ctx context.Context, key string) (*Pricelist, error) {
	adapter, ok := Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegistrarNotFound, key)
	}

	if pl := s.cached(ctx, key); pl != nil {
		metrics.CacheHitsTotal.WithLabelValues(key).Inc()
		return pl, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(key).Inc()

	return s.generate(ctx, adapter)
}

// Refresh bypasses the snapshot cache and always regenerates.
func (s *Service) Refresh(ctx context.Context, key string) (*Pricelist, error) {
	adapter, ok := Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegistrarNotFound, key)
	}
	return s.generate(ctx, adapter)
}

// cached returns a reusable snapshot or nil. A snapshot without a timestamp
// is structurally missing and treated as absent, not as an error.
func (s *Service) cached(ctx context.Context, key string) *Pricelist {
	if s.store == nil || s.ttl == 0 {
		return nil
	}
	snap, err := s.store.GetPricelistSnapshot(ctx, key)
	if err != nil || snap == nil || len(snap.Payload) == 0 {
		return nil
	}
	if snap.FetchedAt.IsZero() {
		return nil
	}
	if s.ttl > 0 && time.Since(snap.FetchedAt) > s.ttl {
		return nil
	}

	var pl Pricelist
	if err := json.Unmarshal(snap.Payload, &pl); err != nil {
		// Corrupt snapshot: fall through to a fresh generation.
		return nil
	}
	return &pl
}

func (s *Service) generate(ctx context.Context, adapter Adapter) (*Pricelist, error) {
	key := adapter.Key()
	started := time.Now()
	metrics.GenerateTotal.WithLabelValues(key).Inc()

	pl, err := adapter.Generate(ctx)
	metrics.GenerateDurationSeconds.WithLabelValues(key).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.GenerateErrorsTotal.WithLabelValues(key).Inc()
		return nil, fmt.Errorf("registrar %s: %w", key, err)
	}
	if pl == nil {
		metrics.GenerateErrorsTotal.WithLabelValues(key).Inc()
		return nil, fmt.Errorf("registrar %s: adapter returned no pricelist", key)
	}
	if pl.FetchedAt.IsZero() {
		pl.FetchedAt = time.Now().UTC()
	}
	metrics.PricelistTlds.WithLabelValues(key).Set(float64(len(pl.Items)))

	// Best-effort write-back to storage.
	if s.store != nil {
		if payload, err := json.Marshal(pl); err == nil {
			if err := s.store.SavePricelistSnapshot(ctx, storage.PricelistSnapshot{
				Registrar: key,
				Payload:   payload,
				FetchedAt: pl.FetchedAt,
			}); err != nil {
				log.Printf("pricelist: snapshot write for %s failed: %v", key, err)
			}
		}
	}

	return pl, nil
}

// BatchResult is the outcome of generating several registrars in one run.
// A registrar's failure never aborts its siblings; failed registrars appear
// in Errors and are absent from Lists.
type BatchResult struct {
	Lists  map[string]*Pricelist
	Errors map[string]error
}

// GetAllLists runs Get for each requested registrar concurrently. keys nil
// means every registered adapter.
func (s *Service) GetAllLists(ctx context.Context, keys []string) BatchResult {
	return s.batch(ctx, keys, s.Get)
}

// RefreshAll regenerates every requested registrar, ignoring the cache.
func (s *Service) RefreshAll(ctx context.Context, keys []string) BatchResult {
	return s.batch(ctx, keys, s.Refresh)
}

func (s *Service) batch(ctx context.Context, keys []string, get func(context.Context, string) (*Pricelist, error)) BatchResult {
	if len(keys) == 0 {
		keys = List()
	}

	res := BatchResult{
		Lists:  make(map[string]*Pricelist, len(keys)),
		Errors: make(map[string]error),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			pl, err := get(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("pricelist: %s failed: %v", key, err)
				res.Errors[key] = err
				return
			}
			res.Lists[key] = pl
		}(key)
	}
	wg.Wait()

	return res
}

// Unified merges the given registrars' pricelists. Registrars that fail to
// generate are skipped; their errors are returned alongside the entries.
func (s *Service) Unified(ctx context.Context, keys []string) ([]UnifiedEntry, map[string]error) {
	res := s.GetAllLists(ctx, keys)
	entries := Unify(res.Lists, nil)
	metrics.UnifiedEntries.Set(float64(len(entries)))
	return entries, res.Errors
}
