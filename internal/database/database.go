// Package database owns the connection to the relational store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// DBTX is the query surface the repositories need. *sql.DB, *sql.Tx and
// sqlmock connections all satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Handle is the process-wide store handle. It connects on first use and is
// handed to repositories explicitly, so tests can build repositories over any
// other DBTX.
type Handle struct {
	dsn string

	once sync.Once
	pool *pgxpool.Pool
	db   *sql.DB
	err  error
}

// NewHandle records the DSN without connecting.
func NewHandle(dsn string) *Handle {
	return &Handle{dsn: dsn}
}

// DB returns the shared *sql.DB, connecting and pinging on the first call.
// A failed first connection is sticky: later calls return the same error.
func (h *Handle) DB(ctx context.Context) (*sql.DB, error) {
	h.once.Do(func() {
		pool, err := Connect(ctx, h.dsn)
		if err != nil {
			h.err = fmt.Errorf("connect database: %w", err)
			return
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			h.err = fmt.Errorf("ping database: %w", err)
			return
		}
		h.pool = pool
		h.db = stdlib.OpenDBFromPool(pool)
	})
	return h.db, h.err
}

// Close releases the pool if it was opened.
func (h *Handle) Close() {
	if h.db != nil {
		_ = h.db.Close()
	}
	if h.pool != nil {
		h.pool.Close()
	}
}

// EnsureSchema creates the four tables if needed. The migration lives in code
// so a fresh database can be bootstrapped by `busdocs migrate`.
func EnsureSchema(ctx context.Context, db DBTX) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS buses (
	id TEXT PRIMARY KEY,
	ppu TEXT NOT NULL UNIQUE,
	numero_interno TEXT NOT NULL,
	activo BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS documentos_bus (
	bus_id TEXT NOT NULL REFERENCES buses(id),
	tipo_documento TEXT NOT NULL,
	estado TEXT NOT NULL,
	observacion TEXT,
	updated_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (bus_id, tipo_documento)
);
CREATE TABLE IF NOT EXISTS documentos_archivos (
	id TEXT PRIMARY KEY,
	bus_id TEXT NOT NULL REFERENCES buses(id),
	tipo_documento TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	activo BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_documentos_archivos_bus_tipo ON documentos_archivos(bus_id, tipo_documento);
CREATE TABLE IF NOT EXISTS documentos_analisis (
	id TEXT PRIMARY KEY,
	documento_archivo_id TEXT NOT NULL REFERENCES documentos_archivos(id),
	bus_id TEXT NOT NULL REFERENCES buses(id),
	tipo_documento TEXT NOT NULL,
	resumen JSONB NOT NULL DEFAULT '{}'::jsonb,
	observaciones TEXT,
	puntaje_confianza DOUBLE PRECISION,
	analizado_en TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documentos_analisis_bus_tipo ON documentos_analisis(bus_id, tipo_documento);`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
