// Package analysis scores uploaded document files against the bus they
// belong to. It looks for the plate, the internal number and per-type
// keywords in PDF text, reads image dimensions, and derives a confidence
// score from what it finds.
package analysis

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"math"
	"strings"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
	pdfutil "github.com/dharsanguruparan/busdocs/internal/pdf"
)

// Observations attached to a result.
const (
	ObsUnsupported   = "Formato no soportado, se realiza análisis básico de tamaño."
	ObsNoPPU         = "No se encontró la PPU del bus en el documento."
	ObsNoNumero      = "No aparece el número interno del bus."
	ObsTooLight      = "Archivo demasiado liviano, podría estar incompleto."
	ObsUnreadablePDF = "No se pudo leer el contenido del PDF."
	ObsUnreadableImg = "No se pudo leer la imagen."
)

const (
	scorePPU      = 0.4
	scoreNumero   = 0.25
	scoreKeywords = 0.2
	scoreSize     = 0.1
	maxScore      = 0.95

	minSizeBytes = 50_000
)

// Keywords lists the lowercase terms expected in each document type.
var Keywords = map[model.DocumentType][]string{
	model.PermisoCirculacion:     {"permiso", "circulación", "municipalidad"},
	model.SeguroObligatorio:      {"soap", "seguro", "compañía"},
	model.RevisionTecnica:        {"plant", "revisión técnica", "rv"},
	model.RevisionGases:          {"gases", "emisiones"},
	model.CertificadoInscripcion: {"registro", "inscripción"},
	model.CertificadoRecorrido:   {"recorrido", "seremitt"},
}

// Result is the outcome of analyzing one file.
type Result struct {
	Bus           model.Bus
	File          model.FileRecord
	Resumen       map[string]any
	Observaciones []string
	Puntaje       float64
	AnalizadoEn   time.Time
}

// Record converts r into the row stored in documentos_analisis.
func (r Result) Record(id string) model.AnalysisRecord {
	rec := model.AnalysisRecord{
		ID:                 id,
		DocumentoArchivoID: r.File.ID,
		BusID:              r.Bus.ID,
		TipoDocumento:      r.File.TipoDocumento,
		Resumen:            r.Resumen,
		AnalizadoEn:        r.AnalizadoEn,
	}
	if len(r.Observaciones) > 0 {
		obs := strings.Join(r.Observaciones, "\n")
		rec.Observaciones = &obs
	}
	score := math.Round(r.Puntaje*10000) / 10000
	rec.PuntajeConfianza = &score
	return rec
}

// Analyzer analyzes files of a single bus.
type Analyzer struct {
	bus model.Bus
	now func() time.Time
}

// New returns an Analyzer for bus.
func New(bus model.Bus) *Analyzer {
	return &Analyzer{bus: bus, now: time.Now}
}

// Analyze inspects content according to its format and scores it.
func (a *Analyzer) Analyze(file model.FileRecord, content []byte) Result {
	resumen := map[string]any{
		"mime_type":      file.MimeType,
		"tamanio_bytes":  len(content),
		"tipo_documento": string(file.TipoDocumento),
	}
	var obs []string
	pages := 1
	var found features

	switch {
	case isPDF(file):
		doc, err := pdfutil.Extract(content)
		if err != nil {
			obs = append(obs, ObsUnreadablePDF)
			pages = 0
			resumen["paginas"] = 0
			resumen["caracteristicas_pdf"] = map[string]any{"encrypted": false, "error": err.Error()}
			break
		}
		pages = doc.Pages
		found = a.scan(file.TipoDocumento, doc.Text)
		resumen["paginas"] = doc.Pages
		resumen["caracteristicas_pdf"] = map[string]any{"lector": doc.Header, "encrypted": doc.Encrypted}
		found.into(resumen)
	case strings.HasPrefix(strings.ToLower(file.MimeType), "image"):
		cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
		if err != nil {
			obs = append(obs, ObsUnreadableImg)
		} else {
			resumen["dimensiones"] = map[string]any{"ancho": cfg.Width, "alto": cfg.Height}
		}
		// no OCR backend: images carry no text to match
		found = a.scan(file.TipoDocumento, "")
		found.into(resumen)
		resumen["ocr_habilitado"] = false
	default:
		obs = append(obs, ObsUnsupported)
		resumen["heuristicas"] = []string{}
	}

	var score float64
	if found.ppu {
		score += scorePPU
	} else {
		obs = append(obs, ObsNoPPU)
	}
	if found.numero {
		score += scoreNumero
	} else {
		obs = append(obs, ObsNoNumero)
	}
	if len(found.keywords) > 0 {
		score += scoreKeywords
	}
	if pages >= 1 && len(content) > minSizeBytes {
		score += scoreSize
	} else {
		obs = append(obs, ObsTooLight)
	}

	return Result{
		Bus:           a.bus,
		File:          file,
		Resumen:       resumen,
		Observaciones: obs,
		Puntaje:       math.Min(score, maxScore),
		AnalizadoEn:   a.now().UTC(),
	}
}

type features struct {
	ppu      bool
	numero   bool
	keywords []string
}

func (f features) into(resumen map[string]any) {
	resumen["tiene_ppu"] = f.ppu
	resumen["tiene_numero_interno"] = f.numero
	kw := f.keywords
	if kw == nil {
		kw = []string{}
	}
	resumen["palabras_clave"] = kw
}

// scan matches the bus identity and type keywords in text. Plates match
// ignoring dashes and case.
func (a *Analyzer) scan(tipo model.DocumentType, text string) features {
	lower := strings.ToLower(text)
	var f features
	if text == "" {
		return f
	}
	ppu := strings.ReplaceAll(strings.ToLower(a.bus.PPU), "-", "")
	if ppu != "" {
		f.ppu = strings.Contains(strings.ReplaceAll(lower, "-", ""), ppu)
	}
	if numero := strings.ToLower(strings.TrimSpace(a.bus.NumeroInterno)); numero != "" {
		f.numero = strings.Contains(lower, numero)
	}
	for _, kw := range Keywords[tipo] {
		if strings.Contains(lower, kw) {
			f.keywords = append(f.keywords, kw)
		}
	}
	return f
}

func isPDF(file model.FileRecord) bool {
	return strings.EqualFold(file.MimeType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(file.StoragePath), ".pdf")
}
