// Package compliance holds the pure derivations over bus, status and file
// rows. Nothing here talks to the database or object storage, so every
// function is tested directly.
package compliance

import "github.com/dharsanguruparan/busdocs/internal/model"

// Summary counts always describe the whole fleet.
type Summary struct {
	Total       int `json:"total"`
	Completos   int `json:"completos"`
	Incompletos int `json:"incompletos"`
}

// Report is the completeness view: fleet summary plus the visible details.
type Report struct {
	Resumen  Summary                    `json:"resumen"`
	Detalles []model.CompletenessDetail `json:"detalles"`
}

// Evaluate computes the verdict for one bus. statuses and files may contain
// rows of other buses; only rows whose BusID matches are considered.
//
// Per document type, a missing or non-TIENE status yields ESTADO; otherwise
// the lack of an active file yields ARCHIVO. ESTADO wins, so a type is never
// reported twice.
func Evaluate(bus model.Bus, statuses []model.StatusRecord, files []model.FileRecord) model.CompletenessDetail {
	states := make(map[model.DocumentType]model.DocumentState, len(statuses))
	for _, s := range statuses {
		if s.BusID != bus.ID {
			continue
		}
		states[s.TipoDocumento] = s.Estado
	}
	active := make(map[model.DocumentType]bool)
	for _, f := range files {
		if f.BusID == bus.ID && f.Activo {
			active[f.TipoDocumento] = true
		}
	}

	faltantes := []model.Missing{}
	for _, tipo := range model.DocumentTypes {
		estado, ok := states[tipo]
		switch {
		case !ok || estado != model.Tiene:
			faltantes = append(faltantes, model.Missing{TipoDocumento: tipo, Motivo: model.ReasonEstado})
		case !active[tipo]:
			faltantes = append(faltantes, model.Missing{TipoDocumento: tipo, Motivo: model.ReasonArchivo})
		}
	}
	return model.CompletenessDetail{
		Bus:       bus,
		Completo:  len(faltantes) == 0,
		Faltantes: faltantes,
	}
}

// EvaluateFleet evaluates every bus, keeping the order of buses.
func EvaluateFleet(buses []model.Bus, statuses []model.StatusRecord, files []model.FileRecord) []model.CompletenessDetail {
	statusByBus := make(map[string][]model.StatusRecord)
	for _, s := range statuses {
		statusByBus[s.BusID] = append(statusByBus[s.BusID], s)
	}
	filesByBus := make(map[string][]model.FileRecord)
	for _, f := range files {
		filesByBus[f.BusID] = append(filesByBus[f.BusID], f)
	}
	out := make([]model.CompletenessDetail, 0, len(buses))
	for _, bus := range buses {
		out = append(out, Evaluate(bus, statusByBus[bus.ID], filesByBus[bus.ID]))
	}
	return out
}

// Summarize counts complete and incomplete buses.
func Summarize(details []model.CompletenessDetail) Summary {
	s := Summary{Total: len(details)}
	for _, d := range details {
		if d.Completo {
			s.Completos++
		}
	}
	s.Incompletos = s.Total - s.Completos
	return s
}

// BuildReport summarizes the full fleet and, when onlyIncomplete is set,
// hides complete buses from the detail list. The summary is unaffected by
// the toggle.
func BuildReport(details []model.CompletenessDetail, onlyIncomplete bool) Report {
	visible := details
	if onlyIncomplete {
		visible = make([]model.CompletenessDetail, 0, len(details))
		for _, d := range details {
			if !d.Completo {
				visible = append(visible, d)
			}
		}
	}
	if visible == nil {
		visible = []model.CompletenessDetail{}
	}
	return Report{Resumen: Summarize(details), Detalles: visible}
}
