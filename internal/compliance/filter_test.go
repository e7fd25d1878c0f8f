package compliance

import (
	"reflect"
	"testing"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

func fleetFixture() []model.FleetEntry {
	buses := []model.Bus{
		{ID: "1", PPU: "AB-CD-12", NumeroInterno: "045"},
		{ID: "2", PPU: "FG-HJ-34", NumeroInterno: "146"},
		{ID: "3", PPU: "KL-MN-56", NumeroInterno: "A45"},
	}
	statuses := []model.StatusRecord{
		{BusID: "1", TipoDocumento: model.SeguroObligatorio, Estado: model.Danado},
		{BusID: "2", TipoDocumento: model.SeguroObligatorio, Estado: model.Tiene},
	}
	return GroupFleet(buses, statuses)
}

func TestFilterIdentity(t *testing.T) {
	entries := fleetFixture()
	got := Filter(entries, Criteria{})
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("empty criteria must return the full list")
	}
}

func TestFilterCriteria(t *testing.T) {
	entries := fleetFixture()
	cases := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"plate substring case-insensitive", Criteria{PPU: " cd-1 "}, []string{"1"}},
		{"number substring", Criteria{Numero: "45"}, []string{"1", "3"}},
		{"number lower case", Criteria{Numero: "a4"}, []string{"3"}},
		{"state filter", Criteria{Estado: model.Danado}, []string{"1"}},
		{"state without rows", Criteria{Estado: model.NoTiene}, nil},
		{"combined", Criteria{Numero: "45", Estado: model.Tiene}, nil},
	}
	for _, tc := range cases {
		got := Filter(entries, tc.c)
		var ids []string
		for _, e := range got {
			ids = append(ids, e.Bus.ID)
		}
		if !reflect.DeepEqual(ids, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, ids, tc.want)
		}
	}
}

func TestGroupFleetKeepsEmptyBuses(t *testing.T) {
	entries := fleetFixture()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Documentos == nil || len(entries[2].Documentos) != 0 {
		t.Fatalf("bus without rows must carry an empty list")
	}
}

func TestCriticalTypes(t *testing.T) {
	m := model.NewStateMap()
	for _, tipo := range model.DocumentTypes {
		m[tipo] = model.Tiene
	}
	if got := CriticalTypes(m); len(got) != 0 {
		t.Fatalf("expected no critical types, got %v", got)
	}
	m[model.CertificadoRecorrido] = model.Danado
	m[model.SeguroObligatorio] = model.NoTiene
	want := []model.DocumentType{model.SeguroObligatorio, model.CertificadoRecorrido}
	if got := CriticalTypes(m); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestStatesFromRecordsDefaults(t *testing.T) {
	m := StatesFromRecords([]model.StatusRecord{
		{TipoDocumento: model.RevisionGases, Estado: model.Danado},
		{TipoDocumento: "OTRO", Estado: model.Tiene},
	})
	if err := m.Validate(); err != nil {
		t.Fatalf("mapping must be complete: %v", err)
	}
	for _, tipo := range model.DocumentTypes {
		want := model.NoTiene
		if tipo == model.RevisionGases {
			want = model.Danado
		}
		if m[tipo] != want {
			t.Fatalf("%s: got %s want %s", tipo, m[tipo], want)
		}
	}
}
