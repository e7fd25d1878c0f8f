// Package model contains the catalog and row types shared across packages.
package model

import (
	"strings"
	"time"
)

// Bus is a row of the buses table. Plates and internal numbers are stored
// upper case.
type Bus struct {
	ID            string    `json:"id"`
	PPU           string    `json:"ppu"`
	NumeroInterno string    `json:"numero_interno"`
	Activo        bool      `json:"activo"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatusRecord is the manual verdict for one (bus, document type) pair.
type StatusRecord struct {
	BusID         string        `json:"bus_id"`
	TipoDocumento DocumentType  `json:"tipo_documento"`
	Estado        DocumentState `json:"estado"`
	// omitempty drops the note from JSON output when it was never set.
	Observacion *string   `json:"observacion,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileRecord holds metadata about an uploaded document file. Records are
// deactivated on replacement, never deleted.
type FileRecord struct {
	ID            string       `json:"id"`
	BusID         string       `json:"bus_id"`
	TipoDocumento DocumentType `json:"tipo_documento"`
	StoragePath   string       `json:"storage_path"`
	MimeType      string       `json:"mime_type"`
	UploadedAt    time.Time    `json:"uploaded_at"`
	Activo        bool         `json:"activo"`
}

// FileName returns the last segment of the storage path.
func (f FileRecord) FileName() string {
	return f.StoragePath[strings.LastIndex(f.StoragePath, "/")+1:]
}

// AnalysisRecord is written by the analysis worker for a specific file.
type AnalysisRecord struct {
	ID                 string         `json:"id"`
	DocumentoArchivoID string         `json:"documento_archivo_id"`
	BusID              string         `json:"bus_id"`
	TipoDocumento      DocumentType   `json:"tipo_documento"`
	Resumen            map[string]any `json:"resumen"`
	Observaciones      *string        `json:"observaciones,omitempty"`
	PuntajeConfianza   *float64       `json:"puntaje_confianza,omitempty"`
	AnalizadoEn        time.Time      `json:"analizado_en"`
}

// MissingReason explains why a document type keeps a bus incomplete.
type MissingReason string

const (
	// ReasonEstado: no TIENE status recorded.
	ReasonEstado MissingReason = "ESTADO"
	// ReasonArchivo: status is TIENE but there is no active file.
	ReasonArchivo MissingReason = "ARCHIVO"
)

// Missing is a single entry of a completeness verdict.
type Missing struct {
	TipoDocumento DocumentType  `json:"tipo_documento"`
	Motivo        MissingReason `json:"motivo"`
}

// CompletenessDetail is derived on every report load and never stored.
type CompletenessDetail struct {
	Bus       Bus       `json:"bus"`
	Completo  bool      `json:"completo"`
	Faltantes []Missing `json:"faltantes"`
}

// FleetEntry pairs a bus with its recorded statuses for the fleet view.
type FleetEntry struct {
	Bus        Bus            `json:"bus"`
	Documentos []StatusRecord `json:"documentos_bus"`
}
