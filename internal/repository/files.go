package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

const fileColumns = `id, bus_id, tipo_documento, storage_path, mime_type, uploaded_at, activo`

// FileRepository reads and writes documentos_archivos. Rows are never deleted.
type FileRepository struct {
	db database.DBTX
}

// NewFileRepository constructs a repository.
func NewFileRepository(db database.DBTX) *FileRepository {
	return &FileRepository{db: db}
}

// ListByBusType returns the files of a (bus, type) pair, newest upload first.
func (r *FileRepository) ListByBusType(ctx context.Context, busID string, tipo model.DocumentType) ([]model.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM documentos_archivos
		WHERE bus_id = $1 AND tipo_documento = $2
		ORDER BY uploaded_at DESC
	`, busID, string(tipo))
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	return collectFiles(rows)
}

// ListByBus returns every file of a bus, newest upload first.
func (r *FileRepository) ListByBus(ctx context.Context, busID string, onlyActive bool) ([]model.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM documentos_archivos
		WHERE bus_id = $1 AND (NOT $2::boolean OR activo)
		ORDER BY uploaded_at DESC
	`, busID, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	return collectFiles(rows)
}

// ListActive returns the active files of the whole fleet.
func (r *FileRepository) ListActive(ctx context.Context) ([]model.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM documentos_archivos
		WHERE activo
	`)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	return collectFiles(rows)
}

// Get returns a file record by id.
func (r *FileRepository) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM documentos_archivos WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select file: %w", err)
	}
	files, err := collectFiles(rows)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file %s: %w", id, model.ErrNotFound)
	}
	return &files[0], nil
}

// Insert stores a new file record.
func (r *FileRepository) Insert(ctx context.Context, rec *model.FileRecord) error {
	if rec.ID == "" || rec.BusID == "" || rec.StoragePath == "" {
		return fmt.Errorf("insert file: %w", ErrInvalidRow)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documentos_archivos (`+fileColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.BusID, string(rec.TipoDocumento), rec.StoragePath, rec.MimeType, rec.UploadedAt, rec.Activo)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// Deactivate clears the active flag on every file of the pair and returns the
// number of rows touched.
func (r *FileRepository) Deactivate(ctx context.Context, busID string, tipo model.DocumentType) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documentos_archivos
		SET activo = FALSE
		WHERE bus_id = $1 AND tipo_documento = $2 AND activo
	`, busID, string(tipo))
	if err != nil {
		return 0, fmt.Errorf("deactivate files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate files: %w", err)
	}
	return n, nil
}

func collectFiles(rows *sql.Rows) ([]model.FileRecord, error) {
	defer rows.Close()
	out := []model.FileRecord{}
	for rows.Next() {
		var (
			rec        model.FileRecord
			tipo       string
			path, mime sql.NullString
			uploadedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.BusID, &tipo, &path, &mime, &uploadedAt, &rec.Activo); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		rec.TipoDocumento = model.DocumentType(tipo)
		if !rec.TipoDocumento.Valid() || !path.Valid || path.String == "" {
			return nil, fmt.Errorf("file %s: %w", rec.ID, ErrInvalidRow)
		}
		rec.StoragePath = path.String
		rec.MimeType = mime.String
		if rec.MimeType == "" {
			rec.MimeType = "application/octet-stream"
		}
		rec.UploadedAt = nullTime(uploadedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

// IsInvalidRow reports whether err came from boundary validation.
func IsInvalidRow(err error) bool {
	return errors.Is(err, ErrInvalidRow)
}
