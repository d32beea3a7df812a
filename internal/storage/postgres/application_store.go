// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appvine/apptrack/internal/apperr"
	"github.com/appvine/apptrack/internal/application"
)

// ApplicationStoreConfig controls the Postgres connection pool.
type ApplicationStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ApplicationStore reads and writes application rows in Postgres.
type ApplicationStore struct {
	pool dbPool
}

// NewApplicationStore creates a store backed by a new pgx pool.
func NewApplicationStore(ctx context.Context, cfg ApplicationStoreConfig) (*ApplicationStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ApplicationStore{pool: pool}, nil
}

// NewApplicationStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewApplicationStoreWithPool(pool dbPool) (*ApplicationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ApplicationStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ApplicationStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS applications (
	id BIGSERIAL PRIMARY KEY,
	company_name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	amount NUMERIC(10,2) NOT NULL CHECK (amount > 0),
	notes TEXT,
	date TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the applications table when it does not exist yet.
func (s *ApplicationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return apperr.Storage("ensure applications schema", err)
	}
	return nil
}

const applicationColumns = `id, company_name, email, status, amount::text, notes, date, created_at, updated_at`

// List returns every application, newest created first.
func (s *ApplicationStore) List(ctx context.Context) ([]application.Application, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM applications ORDER BY created_at DESC`,
		applicationColumns,
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.Storage("list applications", err)
	}
	defer rows.Close()

	apps := make([]application.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperr.Storage("scan application row", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate application rows", err)
	}
	return apps, nil
}

// Create inserts one application and returns the persisted row including
// generated id and timestamps.
func (s *ApplicationStore) Create(ctx context.Context, fields application.CreateFields) (application.Application, error) {
	query := fmt.Sprintf(`
INSERT INTO applications (company_name, email, status, amount, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING %s`, applicationColumns)

	row := s.pool.QueryRow(ctx, query,
		fields.CompanyName,
		fields.Email,
		string(fields.Status),
		fields.Amount,
		fields.Notes,
	)
	app, err := scanApplication(row)
	if err != nil {
		return application.Application{}, apperr.Storage("insert application", err)
	}
	return app, nil
}

// Delete removes the row matching id and returns its prior state. A missing
// row reports a not-found error.
func (s *ApplicationStore) Delete(ctx context.Context, id int64) (application.Application, error) {
	query := fmt.Sprintf(
		`DELETE FROM applications WHERE id = $1 RETURNING %s`,
		applicationColumns,
	)
	row := s.pool.QueryRow(ctx, query, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return application.Application{}, apperr.NotFound("application not found")
		}
		return application.Application{}, apperr.Storage("delete application", err)
	}
	return app, nil
}

func scanApplication(row pgx.Row) (application.Application, error) {
	var app application.Application
	var status string
	err := row.Scan(
		&app.ID,
		&app.CompanyName,
		&app.Email,
		&status,
		&app.Amount,
		&app.Notes,
		&app.Date,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return application.Application{}, err
	}
	app.Status = application.Status(status)
	return app, nil
}
