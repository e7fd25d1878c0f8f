package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

const statusColumns = `bus_id, tipo_documento, estado, observacion, updated_at`

// StatusRepository reads and writes documentos_bus, unique on (bus_id, tipo_documento).
type StatusRepository struct {
	db database.DBTX
}

// NewStatusRepository constructs a repository.
func NewStatusRepository(db database.DBTX) *StatusRepository {
	return &StatusRepository{db: db}
}

// ListByBus returns the recorded statuses of one bus.
func (r *StatusRepository) ListByBus(ctx context.Context, busID string) ([]model.StatusRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+statusColumns+`
		FROM documentos_bus WHERE bus_id = $1
	`, busID)
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	return collectStatuses(rows)
}

// ListAll returns every status row of the fleet.
func (r *StatusRepository) ListAll(ctx context.Context) ([]model.StatusRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+statusColumns+`
		FROM documentos_bus
	`)
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	return collectStatuses(rows)
}

// Upsert writes all records in a single statement keyed on
// (bus_id, tipo_documento). Existing rows are overwritten, last write wins.
func (r *StatusRepository) Upsert(ctx context.Context, records []model.StatusRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*5)
	for i, rec := range records {
		n := i * 5
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5))
		args = append(args, rec.BusID, string(rec.TipoDocumento), string(rec.Estado), rec.Observacion, rec.UpdatedAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documentos_bus (`+statusColumns+`)
		VALUES `+strings.Join(values, ",")+`
		ON CONFLICT (bus_id, tipo_documento) DO UPDATE
		SET estado = EXCLUDED.estado,
			observacion = EXCLUDED.observacion,
			updated_at = EXCLUDED.updated_at
	`, args...)
	if err != nil {
		return fmt.Errorf("upsert statuses: %w", err)
	}
	return nil
}

// ResolvePending flips every stored non-TIENE row of the bus to TIENE and
// returns how many rows changed.
func (r *StatusRepository) ResolvePending(ctx context.Context, busID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documentos_bus
		SET estado = $1, updated_at = $2
		WHERE bus_id = $3 AND estado <> $1
	`, string(model.Tiene), at, busID)
	if err != nil {
		return 0, fmt.Errorf("resolve statuses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve statuses: %w", err)
	}
	return n, nil
}

func collectStatuses(rows *sql.Rows) ([]model.StatusRecord, error) {
	defer rows.Close()
	out := []model.StatusRecord{}
	for rows.Next() {
		var (
			rec         model.StatusRecord
			tipo, state string
			obs         sql.NullString
			updatedAt   sql.NullTime
		)
		if err := rows.Scan(&rec.BusID, &tipo, &state, &obs, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		rec.TipoDocumento = model.DocumentType(tipo)
		rec.Estado = model.DocumentState(state)
		if !rec.TipoDocumento.Valid() || !rec.Estado.Valid() {
			return nil, fmt.Errorf("status %s/%s=%s: %w", rec.BusID, tipo, state, ErrInvalidRow)
		}
		if obs.Valid {
			note := obs.String
			rec.Observacion = &note
		}
		rec.UpdatedAt = nullTime(updatedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return out, nil
}
