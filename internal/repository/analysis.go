package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

const analysisColumns = `id, documento_archivo_id, bus_id, tipo_documento, resumen, observaciones, puntaje_confianza, analizado_en`

// AnalysisRepository reads documentos_analisis. Only the analysis worker
// inserts rows.
type AnalysisRepository struct {
	db database.DBTX
}

// NewAnalysisRepository constructs a repository.
func NewAnalysisRepository(db database.DBTX) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// ListByBusType returns analyses of a (bus, type) pair, newest first.
func (r *AnalysisRepository) ListByBusType(ctx context.Context, busID string, tipo model.DocumentType) ([]model.AnalysisRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM documentos_analisis
		WHERE bus_id = $1 AND tipo_documento = $2
		ORDER BY analizado_en DESC
	`, busID, string(tipo))
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	return collectAnalyses(rows)
}

// ListByFile returns analyses of one file, newest first.
func (r *AnalysisRepository) ListByFile(ctx context.Context, fileID string) ([]model.AnalysisRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM documentos_analisis
		WHERE documento_archivo_id = $1
		ORDER BY analizado_en DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	return collectAnalyses(rows)
}

// Insert stores an analysis result.
func (r *AnalysisRepository) Insert(ctx context.Context, rec *model.AnalysisRecord) error {
	resumen := rec.Resumen
	if resumen == nil {
		resumen = map[string]any{}
	}
	raw, err := json.Marshal(resumen)
	if err != nil {
		return fmt.Errorf("marshal resumen: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documentos_analisis (`+analysisColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.DocumentoArchivoID, rec.BusID, string(rec.TipoDocumento), raw, rec.Observaciones, rec.PuntajeConfianza, rec.AnalizadoEn)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func collectAnalyses(rows *sql.Rows) ([]model.AnalysisRecord, error) {
	defer rows.Close()
	out := []model.AnalysisRecord{}
	for rows.Next() {
		var (
			rec         model.AnalysisRecord
			tipo        string
			resumen     []byte
			obs         sql.NullString
			puntaje     sql.NullFloat64
			analizadoEn sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.DocumentoArchivoID, &rec.BusID, &tipo, &resumen, &obs, &puntaje, &analizadoEn); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.TipoDocumento = model.DocumentType(tipo)
		if !rec.TipoDocumento.Valid() || rec.DocumentoArchivoID == "" {
			return nil, fmt.Errorf("analysis %s: %w", rec.ID, ErrInvalidRow)
		}
		rec.Resumen = map[string]any{}
		if len(resumen) > 0 {
			if err := json.Unmarshal(resumen, &rec.Resumen); err != nil {
				return nil, fmt.Errorf("analysis %s resumen: %w", rec.ID, ErrInvalidRow)
			}
		}
		if obs.Valid {
			note := obs.String
			rec.Observaciones = &note
		}
		if puntaje.Valid {
			score := puntaje.Float64
			rec.PuntajeConfianza = &score
		}
		rec.AnalizadoEn = nullTime(analizadoEn)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}
