package compliance

import (
	"reflect"
	"testing"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

func TestParsePrintRequest(t *testing.T) {
	cases := []struct {
		modo, tipos string
		want        PrintRequest
		wantErr     bool
	}{
		{modo: "todo", tipos: "REVISION_GASES", want: PrintRequest{Mode: PrintAll}},
		{modo: "", want: PrintRequest{Mode: PrintMissing}},
		{modo: "otro", tipos: "revision_gases,,SEGURO_OBLIGATORIO", want: PrintRequest{
			Mode:  PrintMissing,
			Tipos: []model.DocumentType{model.RevisionGases, model.SeguroObligatorio},
		}},
		{modo: "faltantes", tipos: "PATENTE", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePrintRequest(tc.modo, tc.tipos)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q/%q: expected error", tc.modo, tc.tipos)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q/%q: unexpected error %v", tc.modo, tc.tipos, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q/%q: got %+v want %+v", tc.modo, tc.tipos, got, tc.want)
		}
	}
}

func TestPrintRowsDefaultsMissingTypes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stamp := now.Add(-48 * time.Hour)
	records := []model.StatusRecord{
		{BusID: "b", TipoDocumento: model.SeguroObligatorio, Estado: model.Tiene, UpdatedAt: stamp},
	}
	rows := PrintRows(PrintRequest{Mode: PrintAll}, records, now)
	if len(rows) != 6 {
		t.Fatalf("todo mode must list all types, got %d", len(rows))
	}
	for i, r := range rows {
		if r.TipoDocumento != model.DocumentTypes[i] {
			t.Fatalf("row %d out of catalog order: %s", i, r.TipoDocumento)
		}
		if r.TipoDocumento == model.SeguroObligatorio {
			if !r.Recorded || r.Estado != model.Tiene || !r.UpdatedAt.Equal(stamp) {
				t.Fatalf("recorded row mangled: %+v", r)
			}
			continue
		}
		if r.Recorded || r.Estado != model.NoTiene || !r.UpdatedAt.Equal(now) {
			t.Fatalf("defaulted row wrong: %+v", r)
		}
	}
}

func TestPrintRowsMissingMode(t *testing.T) {
	records := allStates("b", model.Tiene)
	records[1].Estado = model.Danado
	rows := PrintRows(PrintRequest{Mode: PrintMissing}, records, time.Now())
	if len(rows) != 1 || rows[0].TipoDocumento != model.SeguroObligatorio {
		t.Fatalf("expected only the damaged document, got %+v", rows)
	}
}

func TestPrintRowsExplicitTypes(t *testing.T) {
	records := allStates("b", model.Tiene)
	req := PrintRequest{Mode: PrintMissing, Tipos: []model.DocumentType{model.CertificadoRecorrido, model.PermisoCirculacion}}
	rows := PrintRows(req, records, time.Now())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].TipoDocumento != model.PermisoCirculacion || rows[1].TipoDocumento != model.CertificadoRecorrido {
		t.Fatalf("explicit rows must follow catalog order: %+v", rows)
	}
}

func TestNeedsReconcile(t *testing.T) {
	records := allStates("b", model.Tiene)
	if NeedsReconcile(PrintRequest{Mode: PrintAll}, records) {
		t.Fatalf("all TIENE must be a no-op")
	}
	records[0].Estado = model.Danado
	if !NeedsReconcile(PrintRequest{Mode: PrintAll}, records) {
		t.Fatalf("expected reconcile for damaged row")
	}
	if NeedsReconcile(PrintRequest{Mode: PrintMissing}, records) {
		t.Fatalf("faltantes mode never reconciles")
	}
}
