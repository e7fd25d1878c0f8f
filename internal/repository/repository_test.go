package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

var busCols = []string{"id", "ppu", "numero_interno", "activo", "created_at"}

func TestSearchEscapesWildcards(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewBusRepository(db)

	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, ppu, numero_interno").
		WithArgs(`%AB\_1\%%`, 10).
		WillReturnRows(sqlmock.NewRows(busCols).
			AddRow("b1", "abcd12", " 101 ", true, created))

	buses, err := repo.Search(context.Background(), "AB_1%", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(buses) != 1 || buses[0].PPU != "ABCD12" || buses[0].NumeroInterno != "101" {
		t.Fatalf("unexpected buses %+v", buses)
	}
	if !buses[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", buses[0].CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchEmptyResultIsNotNil(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewBusRepository(db)

	mock.ExpectQuery("SELECT id, ppu").WillReturnRows(sqlmock.NewRows(busCols))
	buses, err := repo.Search(context.Background(), "ZZ", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if buses == nil || len(buses) != 0 {
		t.Fatalf("expected empty slice, got %#v", buses)
	}
}

func TestGetByPPUNotFound(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewBusRepository(db)

	mock.ExpectQuery("FROM buses WHERE upper").
		WithArgs("XX0000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByPPU(context.Background(), " xx0000 ")
	if !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByPPURejectsNullPlate(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewBusRepository(db)

	mock.ExpectQuery("FROM buses WHERE upper").
		WillReturnRows(sqlmock.NewRows(busCols).AddRow("b1", nil, "7", true, nil))

	_, err := repo.GetByPPU(context.Background(), "AB1234")
	if !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestListOnlyActive(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewBusRepository(db)

	mock.ExpectQuery("FROM buses").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(busCols).
			AddRow("b1", "AA1111", "1", true, nil).
			AddRow("b2", "BB2222", "2", true, nil))

	buses, err := repo.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(buses) != 2 {
		t.Fatalf("expected 2 buses, got %d", len(buses))
	}
}

var statusCols = []string{"bus_id", "tipo_documento", "estado", "observacion", "updated_at"}

func TestStatusListByBus(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewStatusRepository(db)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM documentos_bus WHERE bus_id").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(statusCols).
			AddRow("b1", "SEGURO_OBLIGATORIO", "TIENE", nil, at).
			AddRow("b1", "REVISION_TECNICA", "DANADO", "vencida", at))

	records, err := repo.ListByBus(context.Background(), "b1")
	if err != nil {
		t.Fatalf("ListByBus() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Observacion != nil {
		t.Fatalf("expected nil observation")
	}
	if records[1].Observacion == nil || *records[1].Observacion != "vencida" {
		t.Fatalf("unexpected observation %v", records[1].Observacion)
	}
	if records[1].Estado != model.Danado {
		t.Fatalf("estado = %s", records[1].Estado)
	}
}

func TestStatusListRejectsUnknownState(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewStatusRepository(db)

	mock.ExpectQuery("FROM documentos_bus").
		WillReturnRows(sqlmock.NewRows(statusCols).
			AddRow("b1", "SEGURO_OBLIGATORIO", "VENCIDO", nil, nil))

	if _, err := repo.ListAll(context.Background()); !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestStatusUpsertSingleStatement(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewStatusRepository(db)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	note := "ok"
	records := []model.StatusRecord{
		{BusID: "b1", TipoDocumento: model.SeguroObligatorio, Estado: model.Tiene, Observacion: &note, UpdatedAt: at},
		{BusID: "b1", TipoDocumento: model.RevisionGases, Estado: model.NoTiene, Observacion: &note, UpdatedAt: at},
	}
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5),($6,$7,$8,$9,$10) ON CONFLICT (bus_id, tipo_documento) DO UPDATE")).
		WithArgs("b1", "SEGURO_OBLIGATORIO", "TIENE", sqlmock.AnyArg(), at,
			"b1", "REVISION_GASES", "NO_TIENE", sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatusUpsertEmptyIsNoop(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	if err := NewStatusRepository(db).Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert(nil) error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolvePending(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewStatusRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE documentos_bus").
		WithArgs("TIENE", at, "b1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ResolvePending(context.Background(), "b1", at)
	if err != nil {
		t.Fatalf("ResolvePending() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

var fileCols = []string{"id", "bus_id", "tipo_documento", "storage_path", "mime_type", "uploaded_at", "activo"}

func TestFileListByBusType(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewFileRepository(db)

	newer := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	mock.ExpectQuery("FROM documentos_archivos").
		WithArgs("b1", "REVISION_TECNICA").
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow("f2", "b1", "REVISION_TECNICA", "buses/AB1234/REVISION_TECNICA/2-b.pdf", "application/pdf", newer, true).
			AddRow("f1", "b1", "REVISION_TECNICA", "buses/AB1234/REVISION_TECNICA/1-a.pdf", nil, older, false))

	files, err := repo.ListByBusType(context.Background(), "b1", model.RevisionTecnica)
	if err != nil {
		t.Fatalf("ListByBusType() error = %v", err)
	}
	if len(files) != 2 || files[0].ID != "f2" {
		t.Fatalf("unexpected files %+v", files)
	}
	if files[1].MimeType != "application/octet-stream" {
		t.Fatalf("expected default mime, got %q", files[1].MimeType)
	}
}

func TestFileGetNotFound(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewFileRepository(db)

	mock.ExpectQuery("FROM documentos_archivos WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(fileCols))

	_, err := repo.Get(context.Background(), "missing")
	if !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileInsertAndDeactivate(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewFileRepository(db)

	at := time.Now().UTC()
	rec := &model.FileRecord{
		ID: "f1", BusID: "b1", TipoDocumento: model.RevisionGases,
		StoragePath: "buses/AB1234/REVISION_GASES/1-x.pdf", MimeType: "application/pdf",
		UploadedAt: at, Activo: true,
	}
	mock.ExpectExec("UPDATE documentos_archivos").
		WithArgs("b1", "REVISION_GASES").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documentos_archivos").
		WithArgs("f1", "b1", "REVISION_GASES", rec.StoragePath, "application/pdf", at, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Deactivate(context.Background(), "b1", model.RevisionGases)
	if err != nil || n != 1 {
		t.Fatalf("Deactivate() = %d, %v", n, err)
	}
	if err := repo.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFileInsertRejectsEmptyPath(t *testing.T) {
	db, _, done := newMock(t)
	defer done()
	err := NewFileRepository(db).Insert(context.Background(), &model.FileRecord{ID: "f1", BusID: "b1"})
	if !IsInvalidRow(err) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

var analysisCols = []string{"id", "documento_archivo_id", "bus_id", "tipo_documento", "resumen", "observaciones", "puntaje_confianza", "analizado_en"}

func TestAnalysisListByFile(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewAnalysisRepository(db)

	at := time.Now().UTC()
	mock.ExpectQuery("FROM documentos_analisis").
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(analysisCols).
			AddRow("a1", "f1", "b1", "SEGURO_OBLIGATORIO", []byte(`{"paginas":2}`), "ok", 0.8, at).
			AddRow("a0", "f1", "b1", "SEGURO_OBLIGATORIO", nil, nil, nil, at.Add(-time.Hour)))

	got, err := repo.ListByFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("ListByFile() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(got))
	}
	if got[0].PuntajeConfianza == nil || *got[0].PuntajeConfianza != 0.8 {
		t.Fatalf("unexpected score %v", got[0].PuntajeConfianza)
	}
	if got[0].Resumen["paginas"] != float64(2) {
		t.Fatalf("unexpected resumen %v", got[0].Resumen)
	}
	if got[1].Resumen == nil || got[1].PuntajeConfianza != nil {
		t.Fatalf("expected empty resumen and nil score, got %+v", got[1])
	}
}

func TestAnalysisInsert(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewAnalysisRepository(db)

	mock.ExpectExec("INSERT INTO documentos_analisis").
		WithArgs("a1", "f1", "b1", "SEGURO_OBLIGATORIO", []byte(`{}`), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &model.AnalysisRecord{
		ID: "a1", DocumentoArchivoID: "f1", BusID: "b1", TipoDocumento: model.SeguroObligatorio,
		AnalizadoEn: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
