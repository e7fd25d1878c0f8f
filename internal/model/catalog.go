package model

import (
	"fmt"
	"strings"
)

// DocumentType identifies one of the six regulatory documents a bus carries.
// Like the other named string types in this package it keeps the database
// value as its underlying representation.
type DocumentType string

const (
	PermisoCirculacion     DocumentType = "PERMISO_DE_CIRCULACION"
	SeguroObligatorio      DocumentType = "SEGURO_OBLIGATORIO"
	RevisionTecnica        DocumentType = "REVISION_TECNICA"
	RevisionGases          DocumentType = "REVISION_GASES"
	CertificadoInscripcion DocumentType = "CERTIFICADO_INSCRIPCION"
	CertificadoRecorrido   DocumentType = "CERTIFICADO_RECORRIDO"
)

// DocumentTypes is the catalog in display order. Every ordered output in the
// system (critical lists, missing entries, print rows) follows this slice.
var DocumentTypes = []DocumentType{
	PermisoCirculacion,
	SeguroObligatorio,
	RevisionTecnica,
	RevisionGases,
	CertificadoInscripcion,
	CertificadoRecorrido,
}

var displayNames = map[DocumentType]string{
	PermisoCirculacion:     "Permiso de circulación",
	SeguroObligatorio:      "Seguro obligatorio",
	RevisionTecnica:        "Revisión técnica",
	RevisionGases:          "Revisión de gases",
	CertificadoInscripcion: "Certificado de inscripción",
	CertificadoRecorrido:   "Certificado de recorrido",
}

// Types that keep a single active file per bus; uploading a new one retires
// the previous files.
var singleActive = map[DocumentType]bool{
	RevisionTecnica: true,
	RevisionGases:   true,
}

// Valid reports whether t belongs to the catalog.
func (t DocumentType) Valid() bool {
	_, ok := displayNames[t]
	return ok
}

// DisplayName returns the human readable name, or the raw value for unknown types.
func (t DocumentType) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// SingleActive reports whether t belongs to the single-active-file class.
func (t DocumentType) SingleActive() bool {
	return singleActive[t]
}

// ParseDocumentType accepts the catalog value in any case.
func ParseDocumentType(raw string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q: %w", raw, ErrInvalidInput)
	}
	return t, nil
}

// ParseDocumentTypes splits a comma separated list, skipping blanks.
func ParseDocumentTypes(raw string) ([]DocumentType, error) {
	var out []DocumentType
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseDocumentType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// DocumentState is the manual review verdict for a document.
type DocumentState string

const (
	Tiene   DocumentState = "TIENE"
	NoTiene DocumentState = "NO_TIENE"
	Danado  DocumentState = "DANADO"
)

// DocumentStates lists the allowed states.
var DocumentStates = []DocumentState{Tiene, NoTiene, Danado}

// Valid reports whether s is one of the three states.
func (s DocumentState) Valid() bool {
	switch s {
	case Tiene, NoTiene, Danado:
		return true
	}
	return false
}

// Label renders the state the way the printed report shows it ("no tiene").
func (s DocumentState) Label() string {
	return strings.ToLower(strings.Replace(string(s), "_", " ", 1))
}

// ParseDocumentState accepts the stored value in any case.
func ParseDocumentState(raw string) (DocumentState, error) {
	s := DocumentState(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown document state %q: %w", raw, ErrInvalidInput)
	}
	return s, nil
}

// StateMap holds one state per document type.
type StateMap map[DocumentType]DocumentState

// NewStateMap returns a mapping with every type set to NO_TIENE.
func NewStateMap() StateMap {
	m := make(StateMap, len(DocumentTypes))
	for _, t := range DocumentTypes {
		m[t] = NoTiene
	}
	return m
}

// Validate checks that m covers exactly the catalog with valid states.
func (m StateMap) Validate() error {
	if len(m) != len(DocumentTypes) {
		return fmt.Errorf("state mapping must cover %d document types, got %d: %w", len(DocumentTypes), len(m), ErrInvalidInput)
	}
	for _, t := range DocumentTypes {
		s, ok := m[t]
		if !ok {
			return fmt.Errorf("missing state for %s: %w", t, ErrInvalidInput)
		}
		if !s.Valid() {
			return fmt.Errorf("invalid state %q for %s: %w", s, t, ErrInvalidInput)
		}
	}
	return nil
}

// NormalizeKey trims and upper-cases plates and internal numbers before matching.
func NormalizeKey(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
