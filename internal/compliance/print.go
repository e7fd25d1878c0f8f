package compliance

import (
	"strings"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

// PrintMode selects which documents a printed sheet lists.
type PrintMode string

const (
	// PrintAll lists every document and marks the bus reconciled afterwards.
	PrintAll PrintMode = "todo"
	// PrintMissing lists non-TIENE documents, or the explicit Tipos.
	PrintMissing PrintMode = "faltantes"
)

// PrintRequest is the parsed print selector.
type PrintRequest struct {
	Mode  PrintMode            `json:"modo"`
	Tipos []model.DocumentType `json:"tipos,omitempty"`
}

// ParsePrintRequest reads the modo/tipos query values. Anything other than
// "todo" falls back to faltantes; tipos is only honoured in that mode.
func ParsePrintRequest(modo, tipos string) (PrintRequest, error) {
	req := PrintRequest{Mode: PrintMissing}
	if strings.EqualFold(strings.TrimSpace(modo), string(PrintAll)) {
		req.Mode = PrintAll
		return req, nil
	}
	list, err := model.ParseDocumentTypes(tipos)
	if err != nil {
		return PrintRequest{}, err
	}
	req.Tipos = list
	return req, nil
}

// PrintRow is one line of the printed table.
type PrintRow struct {
	TipoDocumento model.DocumentType  `json:"tipo_documento"`
	Nombre        string              `json:"nombre"`
	Estado        model.DocumentState `json:"estado"`
	UpdatedAt     time.Time           `json:"updated_at"`
	// Recorded is false when the row was defaulted because the store has no
	// status for the type.
	Recorded bool `json:"registrado"`
}

// PrintRows lists the rows to render for req, in catalog order. Types with
// no status row default to NO_TIENE stamped with now.
func PrintRows(req PrintRequest, records []model.StatusRecord, now time.Time) []PrintRow {
	byType := make(map[model.DocumentType]model.StatusRecord, len(records))
	for _, r := range records {
		byType[r.TipoDocumento] = r
	}
	requested := make(map[model.DocumentType]bool, len(req.Tipos))
	for _, t := range req.Tipos {
		requested[t] = true
	}

	rows := []PrintRow{}
	for _, tipo := range model.DocumentTypes {
		row := PrintRow{TipoDocumento: tipo, Nombre: tipo.DisplayName(), Estado: model.NoTiene, UpdatedAt: now}
		if rec, ok := byType[tipo]; ok {
			row.Estado = rec.Estado
			row.UpdatedAt = rec.UpdatedAt
			row.Recorded = true
		}
		switch {
		case req.Mode == PrintAll:
		case len(requested) > 0:
			if !requested[tipo] {
				continue
			}
		case row.Estado == model.Tiene:
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// NeedsReconcile reports whether printing req over records should flip
// stored rows to TIENE. It is false when every stored row already is.
func NeedsReconcile(req PrintRequest, records []model.StatusRecord) bool {
	if req.Mode != PrintAll {
		return false
	}
	for _, r := range records {
		if r.Estado != model.Tiene {
			return true
		}
	}
	return false
}
