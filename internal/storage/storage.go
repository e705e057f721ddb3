package storage

import "context"

// Storage abstracts persistence for registrar descriptors and generated
// pricelist snapshots.
type Storage interface {
	// Registrars
	ListRegistrars(ctx context.Context) ([]Registrar, error)
	GetRegistrar(ctx context.Context, key string) (*Registrar, error)
	UpsertRegistrar(ctx context.Context, r Registrar) error

	// Pricelist snapshots. Get returns (nil, nil) when no snapshot exists;
	// a missing snapshot is not an error.
	GetPricelistSnapshot(ctx context.Context, registrar string) (*PricelistSnapshot, error)
	SavePricelistSnapshot(ctx context.Context, snap PricelistSnapshot) error

	// Scheduled job bookkeeping for the refresh worker.
	SaveJobRun(ctx context.Context, job JobRun) error
	GetJobRun(ctx context.Context, name string) (*JobRun, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
