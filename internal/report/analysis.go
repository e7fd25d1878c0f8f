// Package report renders analysis results and completeness reports for the
// CLI and the HTTP export endpoints.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/analysis"
)

type exportBus struct {
	PPU           string `json:"ppu"`
	NumeroInterno string `json:"numero_interno"`
}

type exportDocument struct {
	Tipo        string `json:"tipo"`
	StoragePath string `json:"storage_path"`
	MimeType    string `json:"mime_type"`
}

type exportEntry struct {
	Bus              exportBus      `json:"bus"`
	Documento        exportDocument `json:"documento"`
	Resumen          map[string]any `json:"resumen"`
	Observaciones    []string       `json:"observaciones"`
	PuntajeConfianza float64        `json:"puntaje_confianza"`
	AnalizadoEn      time.Time      `json:"analizado_en"`
}

func toEntries(results []analysis.Result) []exportEntry {
	out := make([]exportEntry, 0, len(results))
	for _, r := range results {
		obs := r.Observaciones
		if obs == nil {
			obs = []string{}
		}
		out = append(out, exportEntry{
			Bus:              exportBus{PPU: r.Bus.PPU, NumeroInterno: r.Bus.NumeroInterno},
			Documento:        exportDocument{Tipo: string(r.File.TipoDocumento), StoragePath: r.File.StoragePath, MimeType: r.File.MimeType},
			Resumen:          r.Resumen,
			Observaciones:    obs,
			PuntajeConfianza: r.Puntaje,
			AnalizadoEn:      r.AnalizadoEn,
		})
	}
	return out
}

// WriteJSON writes results as an indented JSON array.
func WriteJSON(w io.Writer, results []analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(toEntries(results)); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// WriteMarkdown writes one section per analyzed file.
func WriteMarkdown(w io.Writer, results []analysis.Result) error {
	var b strings.Builder
	b.WriteString("# Informe de análisis documental\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "## %s · %s\n", r.Bus.PPU, r.File.TipoDocumento)
		fmt.Fprintf(&b, "Archivo: `%s`\n", r.File.StoragePath)
		fmt.Fprintf(&b, "Puntaje de confianza: **%.2f**\n", r.Puntaje)
		obs := "Sin observaciones"
		if len(r.Observaciones) > 0 {
			obs = strings.Join(r.Observaciones, "; ")
		}
		fmt.Fprintf(&b, "Observaciones: %s\n", obs)
		resumen, err := json.MarshalIndent(r.Resumen, "", "  ")
		if err != nil {
			return fmt.Errorf("encode resumen: %w", err)
		}
		b.WriteString("```json\n")
		b.Write(resumen)
		b.WriteString("\n```\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PrintTable writes a console summary of results.
func PrintTable(w io.Writer, results []analysis.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PPU\tDOCUMENTO\tARCHIVO\tPUNTAJE\tOBSERVACIONES")
	for _, r := range results {
		obs := "—"
		if len(r.Observaciones) > 0 {
			obs = strings.Join(r.Observaciones, " | ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", r.Bus.PPU, r.File.TipoDocumento, r.File.FileName(), r.Puntaje, obs)
	}
	return tw.Flush()
}

// ExportFiles writes reporte-<timestamp>.json and/or .md into dir and
// returns the written paths.
func ExportFiles(dir string, at time.Time, results []analysis.Result, asJSON, asMarkdown bool) ([]string, error) {
	if !asJSON && !asMarkdown {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	stamp := at.UTC().Format("20060102-150405")
	var paths []string
	write := func(ext string, render func(io.Writer, []analysis.Result) error) error {
		path := filepath.Join(dir, "reporte-"+stamp+ext)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := render(f, results); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}
	if asJSON {
		if err := write(".json", WriteJSON); err != nil {
			return paths, err
		}
	}
	if asMarkdown {
		if err := write(".md", WriteMarkdown); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
