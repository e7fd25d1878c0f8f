package compliance

import "github.com/dharsanguruparan/busdocs/internal/model"

// StatesFromRecords builds a complete mapping, defaulting unrecorded types
// to NO_TIENE. Rows for unknown types are ignored.
func StatesFromRecords(records []model.StatusRecord) model.StateMap {
	m := model.NewStateMap()
	for _, r := range records {
		if !r.TipoDocumento.Valid() || !r.Estado.Valid() {
			continue
		}
		m[r.TipoDocumento] = r.Estado
	}
	return m
}

// CriticalTypes returns, in catalog order, the types currently NO_TIENE or
// DANADO. A type absent from m counts as NO_TIENE.
func CriticalTypes(m model.StateMap) []model.DocumentType {
	out := []model.DocumentType{}
	for _, t := range model.DocumentTypes {
		s, ok := m[t]
		if !ok || s == model.NoTiene || s == model.Danado {
			out = append(out, t)
		}
	}
	return out
}
