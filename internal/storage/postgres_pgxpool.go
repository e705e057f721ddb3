package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage talks to postgres through pgxpool directly. It exists
// for multi-instance deployments where the refresh worker takes advisory
// locks and the collector exports pool statistics.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

// isNoRows reports whether a scan failed only because the query matched
// nothing. Getters return (nil, nil) for that case; every other error,
// connection failures included, is passed back to the caller.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/registrar_pricelist?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stat exposes pool statistics for the metrics collector.
func (s *PostgresPoolStorage) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

// TryAdvisoryLock attempts a session advisory lock so that only one worker
// instance runs a scheduled refresh at a time.
func (s *PostgresPoolStorage) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var got bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got)
	return got, err
}

func (s *PostgresPoolStorage) AdvisoryUnlock(ctx context.Context, key int64) error {
	_, err := s.pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
	return err
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS registrars (
			key TEXT PRIMARY KEY,
			name TEXT,
			source TEXT,
			currency TEXT,
			notes TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS pricelist_snapshots (
			id SERIAL PRIMARY KEY,
			registrar TEXT NOT NULL,
			payload BYTEA NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INT,
			last_error TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresPoolStorage) ListRegistrars(ctx context.Context) ([]Registrar, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, name, source, currency, notes FROM registrars ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registrar
	for rows.Next() {
		var r Registrar
		if err := rows.Scan(&r.Key, &r.Name, &r.Source, &r.Currency, &r.Notes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetRegistrar(ctx context.Context, key string) (*Registrar, error) {
	row := s.pool.QueryRow(ctx, `SELECT key, name, source, currency, notes FROM registrars WHERE key=$1`, key)
	var r Registrar
	if err := row.Scan(&r.Key, &r.Name, &r.Source, &r.Currency, &r.Notes); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *PostgresPoolStorage) UpsertRegistrar(ctx context.Context, r Registrar) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registrars (key, name, source, currency, notes)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key) DO UPDATE SET
			name=EXCLUDED.name,
			source=EXCLUDED.source,
			currency=EXCLUDED.currency,
			notes=EXCLUDED.notes
	`, r.Key, r.Name, r.Source, r.Currency, r.Notes)
	return err
}

func (s *PostgresPoolStorage) GetPricelistSnapshot(ctx context.Context, registrar string) (*PricelistSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload, fetched_at
		FROM pricelist_snapshots
		WHERE registrar=$1
		ORDER BY id DESC
		LIMIT 1
	`, registrar)

	var payload []byte
	var fetched time.Time
	if err := row.Scan(&payload, &fetched); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	return &PricelistSnapshot{
		Registrar: registrar,
		Payload:   payload,
		FetchedAt: fetched,
	}, nil
}

func (s *PostgresPoolStorage) SavePricelistSnapshot(ctx context.Context, snap PricelistSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricelist_snapshots (registrar, payload, fetched_at)
		VALUES ($1,$2,$3)
	`, snap.Registrar, snap.Payload, snap.FetchedAt)
	return err
}

func (s *PostgresPoolStorage) SaveJobRun(ctx context.Context, job JobRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_runs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, job.Name, job.LastRunAt, job.LastDurationMs, job.LastSuccess, job.LastError)
	return err
}

func (s *PostgresPoolStorage) GetJobRun(ctx context.Context, name string) (*JobRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT name, last_run_at, last_duration_ms, last_success, last_error FROM job_runs WHERE name=$1`, name)
	var j JobRun
	if err := row.Scan(&j.Name, &j.LastRunAt, &j.LastDurationMs, &j.LastSuccess, &j.LastError); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}
