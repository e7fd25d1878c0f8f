package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/report"
	"github.com/dharsanguruparan/busdocs/internal/repository"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fleet reports",
	}
	cmd.AddCommand(newCompletenessCmd(a))
	return cmd
}

func newCompletenessCmd(a *app) *cobra.Command {
	var (
		onlyIncomplete bool
		xlsxPath       string
	)
	cmd := &cobra.Command{
		Use:   "completeness",
		Short: "Show which buses are missing documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.db(ctx)
			if err != nil {
				return err
			}
			files := repository.NewFileRepository(db)
			reports := fleet.NewReports(repository.NewBusRepository(db), repository.NewStatusRepository(db), files)
			rep, err := reports.Completeness(ctx, onlyIncomplete)
			if err != nil {
				return err
			}
			if xlsxPath == "" {
				return report.PrintCompleteness(cmd.OutOrStdout(), rep)
			}
			out, err := os.Create(xlsxPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", xlsxPath, err)
			}
			if err := report.WriteCompletenessXLSX(out, rep); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reporte de completitud guardado en %s (%d de %d buses incompletos)\n",
				xlsxPath, rep.Resumen.Incompletos, rep.Resumen.Total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyIncomplete, "incomplete", false, "List only incomplete buses (the summary still covers the fleet)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write an Excel workbook to this path instead of printing")
	return cmd
}
