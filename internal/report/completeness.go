package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// Sheet names of the completeness workbook.
const (
	SheetDetail  = "Completitud"
	SheetSummary = "Resumen"
)

var detailHeader = []any{"PPU", "Número interno", "Activo", "Completo", "Faltantes", "Tipos faltantes"}

// WriteCompletenessXLSX renders the report as a workbook with a detail sheet
// and a summary sheet.
func WriteCompletenessXLSX(w io.Writer, report compliance.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDetail); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetDetail, "A1", &detailHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetDetail, "A1", "F1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, d := range report.Detalles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{d.Bus.PPU, d.Bus.NumeroInterno, yesNo(d.Bus.Activo), yesNo(d.Completo), len(d.Faltantes), missingList(d.Faltantes)}
		if err := f.SetSheetRow(SheetDetail, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(SheetDetail, "A", "B", 16); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetDetail, "F", "F", 80); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	summary := [][]any{
		{"Total buses", report.Resumen.Total},
		{"Completos", report.Resumen.Completos},
		{"Incompletos", report.Resumen.Incompletos},
	}
	for i, row := range summary {
		row := row
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// PrintCompleteness writes a console rendering of the report.
func PrintCompleteness(w io.Writer, report compliance.Report) error {
	fmt.Fprintf(w, "Total: %d  Completos: %d  Incompletos: %d\n\n",
		report.Resumen.Total, report.Resumen.Completos, report.Resumen.Incompletos)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PPU\tINTERNO\tCOMPLETO\tFALTANTES")
	for _, d := range report.Detalles {
		missing := missingList(d.Faltantes)
		if missing == "" {
			missing = "—"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Bus.PPU, d.Bus.NumeroInterno, yesNo(d.Completo), missing)
	}
	return tw.Flush()
}

func missingList(items []model.Missing) string {
	parts := make([]string, 0, len(items))
	for _, m := range items {
		parts = append(parts, fmt.Sprintf("%s (%s)", m.TipoDocumento.DisplayName(), strings.ToLower(string(m.Motivo))))
	}
	return strings.Join(parts, ", ")
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
