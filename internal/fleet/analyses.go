package fleet

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

// Analyses exposes analysis rows written by the worker.
type Analyses struct {
	store AnalysisStore
}

// NewAnalyses constructs an Analyses reader.
func NewAnalyses(store AnalysisStore) *Analyses {
	return &Analyses{store: store}
}

// List returns the analyses of a (bus, type) pair, newest first.
func (a *Analyses) List(ctx context.Context, busID string, tipo model.DocumentType) ([]model.AnalysisRecord, error) {
	if !tipo.Valid() {
		return []model.AnalysisRecord{}, fmt.Errorf("document type %q: %w", tipo, model.ErrInvalidInput)
	}
	rows, err := a.store.ListByBusType(ctx, busID, tipo)
	if err != nil {
		return []model.AnalysisRecord{}, model.WrapError(model.ErrRead, "list analyses", err)
	}
	return rows, nil
}

// Latest returns the most recent analysis of a file.
func (a *Analyses) Latest(ctx context.Context, fileID string) (*model.AnalysisRecord, error) {
	rows, err := a.store.ListByFile(ctx, fileID)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "latest analysis", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("analysis for file %s: %w", fileID, model.ErrNotFound)
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.AnalizadoEn.After(best.AnalizadoEn) {
			best = r
		}
	}
	return &best, nil
}

// LatestByFile indexes the newest analysis of every file in the pair.
func (a *Analyses) LatestByFile(ctx context.Context, busID string, tipo model.DocumentType) (map[string]model.AnalysisRecord, error) {
	out := map[string]model.AnalysisRecord{}
	rows, err := a.store.ListByBusType(ctx, busID, tipo)
	if err != nil {
		return out, model.WrapError(model.ErrRead, "list analyses", err)
	}
	for _, r := range rows {
		if cur, ok := out[r.DocumentoArchivoID]; !ok || r.AnalizadoEn.After(cur.AnalizadoEn) {
			out[r.DocumentoArchivoID] = r
		}
	}
	return out, nil
}
