package compliance

import (
	"strings"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

// Criteria narrows the fleet list. An empty Estado means any state.
type Criteria struct {
	PPU    string
	Numero string
	Estado model.DocumentState
}

// Filter keeps the entries whose normalized plate contains the plate filter,
// whose normalized internal number contains the number filter, and, unless
// Estado is empty, that have at least one status row in that state.
func Filter(entries []model.FleetEntry, c Criteria) []model.FleetEntry {
	ppu := model.NormalizeKey(c.PPU)
	numero := model.NormalizeKey(c.Numero)
	out := make([]model.FleetEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.Contains(model.NormalizeKey(e.Bus.PPU), ppu) {
			continue
		}
		if !strings.Contains(model.NormalizeKey(e.Bus.NumeroInterno), numero) {
			continue
		}
		if c.Estado != "" && !hasState(e.Documentos, c.Estado) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasState(docs []model.StatusRecord, s model.DocumentState) bool {
	for _, d := range docs {
		if d.Estado == s {
			return true
		}
	}
	return false
}

// GroupFleet attaches status rows to their buses, keeping the bus order.
func GroupFleet(buses []model.Bus, statuses []model.StatusRecord) []model.FleetEntry {
	byBus := make(map[string][]model.StatusRecord)
	for _, s := range statuses {
		byBus[s.BusID] = append(byBus[s.BusID], s)
	}
	out := make([]model.FleetEntry, 0, len(buses))
	for _, b := range buses {
		docs := byBus[b.ID]
		if docs == nil {
			docs = []model.StatusRecord{}
		}
		out = append(out, model.FleetEntry{Bus: b, Documentos: docs})
	}
	return out
}
