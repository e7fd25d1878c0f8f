package compliance

import (
	"testing"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

var testBus = model.Bus{ID: "bus-1", PPU: "AB-CD-12", NumeroInterno: "045", Activo: true}

func allStates(busID string, s model.DocumentState) []model.StatusRecord {
	out := make([]model.StatusRecord, 0, len(model.DocumentTypes))
	for _, t := range model.DocumentTypes {
		out = append(out, model.StatusRecord{BusID: busID, TipoDocumento: t, Estado: s, UpdatedAt: time.Now()})
	}
	return out
}

func activeFiles(busID string) []model.FileRecord {
	out := make([]model.FileRecord, 0, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		out = append(out, model.FileRecord{ID: string(rune('a' + i)), BusID: busID, TipoDocumento: t, Activo: true})
	}
	return out
}

func TestEvaluateNoStatusRecords(t *testing.T) {
	d := Evaluate(testBus, nil, nil)
	if d.Completo {
		t.Fatalf("expected incomplete bus")
	}
	if len(d.Faltantes) != 6 {
		t.Fatalf("expected 6 missing entries, got %d", len(d.Faltantes))
	}
	for i, m := range d.Faltantes {
		if m.Motivo != model.ReasonEstado {
			t.Fatalf("entry %d: expected ESTADO, got %s", i, m.Motivo)
		}
		if m.TipoDocumento != model.DocumentTypes[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, model.DocumentTypes[i], m.TipoDocumento)
		}
	}
}

func TestEvaluateAllTieneWithoutFiles(t *testing.T) {
	d := Evaluate(testBus, allStates(testBus.ID, model.Tiene), nil)
	if d.Completo {
		t.Fatalf("expected incomplete bus")
	}
	estado, archivo := 0, 0
	for _, m := range d.Faltantes {
		switch m.Motivo {
		case model.ReasonEstado:
			estado++
		case model.ReasonArchivo:
			archivo++
		}
	}
	if estado != 0 || archivo != 6 {
		t.Fatalf("expected 0 ESTADO / 6 ARCHIVO, got %d / %d", estado, archivo)
	}
}

func TestEvaluateInactiveFilesDoNotCount(t *testing.T) {
	files := activeFiles(testBus.ID)
	for i := range files {
		files[i].Activo = false
	}
	d := Evaluate(testBus, allStates(testBus.ID, model.Tiene), files)
	if d.Completo || len(d.Faltantes) != 6 {
		t.Fatalf("inactive files must not satisfy ARCHIVO, got %+v", d.Faltantes)
	}
}

func TestEvaluateComplete(t *testing.T) {
	d := Evaluate(testBus, allStates(testBus.ID, model.Tiene), activeFiles(testBus.ID))
	if !d.Completo {
		t.Fatalf("expected complete bus, missing %+v", d.Faltantes)
	}
	if d.Faltantes == nil || len(d.Faltantes) != 0 {
		t.Fatalf("expected empty, non-nil missing list")
	}
}

func TestEvaluateEstadoTakesPrecedence(t *testing.T) {
	statuses := allStates(testBus.ID, model.Tiene)
	statuses[2].Estado = model.Danado
	statuses[3].Estado = model.NoTiene
	// No files at all: types 2 and 3 must only be reported for ESTADO.
	d := Evaluate(testBus, statuses, nil)
	seen := map[model.DocumentType]int{}
	for _, m := range d.Faltantes {
		seen[m.TipoDocumento]++
		want := model.ReasonArchivo
		if m.TipoDocumento == model.RevisionTecnica || m.TipoDocumento == model.RevisionGases {
			want = model.ReasonEstado
		}
		if m.Motivo != want {
			t.Fatalf("%s: expected %s, got %s", m.TipoDocumento, want, m.Motivo)
		}
	}
	for tipo, n := range seen {
		if n != 1 {
			t.Fatalf("%s reported %d times", tipo, n)
		}
	}
}

func TestEvaluateIgnoresOtherBuses(t *testing.T) {
	other := model.Bus{ID: "bus-2"}
	d := Evaluate(testBus, allStates(other.ID, model.Tiene), activeFiles(other.ID))
	if d.Completo {
		t.Fatalf("rows of another bus must not complete this one")
	}
}

func TestCompletoIffNoMissing(t *testing.T) {
	states := []model.DocumentState{model.Tiene, model.NoTiene, model.Danado}
	// Walk a spread of state/file combinations and check the invariant.
	for mask := 0; mask < 729; mask += 7 {
		statuses := allStates(testBus.ID, model.Tiene)
		m := mask
		for i := range statuses {
			statuses[i].Estado = states[m%3]
			m /= 3
		}
		files := activeFiles(testBus.ID)
		for i := range files {
			files[i].Activo = (mask>>uint(i))%2 == 0
		}
		d := Evaluate(testBus, statuses, files)
		if d.Completo != (len(d.Faltantes) == 0) {
			t.Fatalf("mask %d: completo=%v with %d missing", mask, d.Completo, len(d.Faltantes))
		}
		for _, f := range d.Faltantes {
			var st model.DocumentState
			for _, s := range statuses {
				if s.TipoDocumento == f.TipoDocumento {
					st = s.Estado
				}
			}
			if f.Motivo == model.ReasonArchivo && st != model.Tiene {
				t.Fatalf("mask %d: ARCHIVO reported for non-TIENE %s", mask, f.TipoDocumento)
			}
			if f.Motivo == model.ReasonEstado && st == model.Tiene {
				t.Fatalf("mask %d: ESTADO reported for TIENE %s", mask, f.TipoDocumento)
			}
		}
	}
}

func TestBuildReportToggleKeepsSummary(t *testing.T) {
	complete := model.Bus{ID: "bus-ok", PPU: "ZZ-ZZ-99"}
	buses := []model.Bus{testBus, complete}
	details := EvaluateFleet(buses, allStates(complete.ID, model.Tiene), activeFiles(complete.ID))

	all := BuildReport(details, false)
	only := BuildReport(details, true)
	want := Summary{Total: 2, Completos: 1, Incompletos: 1}
	if all.Resumen != want || only.Resumen != want {
		t.Fatalf("summary changed with toggle: %+v / %+v", all.Resumen, only.Resumen)
	}
	if len(all.Detalles) != 2 {
		t.Fatalf("expected 2 details, got %d", len(all.Detalles))
	}
	if len(only.Detalles) != 1 || only.Detalles[0].Bus.ID != testBus.ID {
		t.Fatalf("expected only the incomplete bus, got %+v", only.Detalles)
	}
}

func TestBuildReportEmptyFleet(t *testing.T) {
	r := BuildReport(nil, true)
	if r.Detalles == nil || r.Resumen.Total != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}
