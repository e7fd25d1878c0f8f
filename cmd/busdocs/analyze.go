package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/model"
	"github.com/dharsanguruparan/busdocs/internal/report"
	"github.com/dharsanguruparan/busdocs/internal/repository"
	"github.com/dharsanguruparan/busdocs/internal/s3storage"
	"github.com/dharsanguruparan/busdocs/internal/worker"
)

type analyzeFlags struct {
	ppu             string
	busID           string
	all             bool
	includeInactive bool
	dryRun          bool
	asJSON          bool
	asMarkdown      bool
	workers         int
	outputDir       string
}

func (f analyzeFlags) validate() error {
	selected := 0
	for _, set := range []bool{f.ppu != "", f.busID != "", f.all} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return errors.New("choose exactly one of --ppu, --bus-id or --all")
	}
	return nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze stored document files and record the results",
		Example: `  busdocs analyze --ppu ABCD12
  busdocs analyze --all --json --markdown
  busdocs analyze --bus-id 3f1c... --include-inactive --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := a.db(ctx)
			if err != nil {
				return err
			}
			busRepo := repository.NewBusRepository(db)
			directory := fleet.NewDirectory(busRepo, a.cfg.SearchLimit, a.logger)

			var buses []model.Bus
			switch {
			case f.all:
				buses, err = directory.All(ctx, true)
			case f.ppu != "":
				var bus *model.Bus
				if bus, err = directory.Lookup(ctx, f.ppu); err == nil {
					buses = []model.Bus{*bus}
				}
			default:
				var bus *model.Bus
				if bus, err = directory.LookupID(ctx, f.busID); err == nil {
					buses = []model.Bus{*bus}
				}
			}
			if err != nil {
				if model.IsKind(err, model.ErrNotFound) {
					return errors.New("no se encontró el bus indicado")
				}
				return err
			}
			if len(buses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay buses para analizar.")
				return nil
			}

			store, err := s3storage.New(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("init storage: %w", err)
			}
			workers := f.workers
			if workers <= 0 {
				workers = a.cfg.AnalysisWorkers
			}
			runner := worker.NewRunner(busRepo, repository.NewFileRepository(db), store, repository.NewAnalysisRepository(db), workers, a.logger)

			results, runErr := runner.AnalyzeBuses(ctx, buses, worker.Options{
				OnlyActive: !f.includeInactive,
				DryRun:     f.dryRun,
			})
			if runErr != nil {
				a.logger.Warn("some documents could not be analyzed", "error", runErr)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No se analizaron documentos.")
				return runErr
			}
			if err := report.PrintTable(cmd.OutOrStdout(), results); err != nil {
				return err
			}

			dir := f.outputDir
			if dir == "" {
				dir = a.cfg.AnalysisOutputDir
			}
			paths, err := report.ExportFiles(dir, time.Now(), results, f.asJSON, f.asMarkdown)
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "Reporte guardado en %s\n", p)
			}
			if err != nil {
				return err
			}
			if f.dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Modo simulación: no se guardaron análisis.")
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&f.ppu, "ppu", "", "Analyze the bus with this plate")
	cmd.Flags().StringVar(&f.busID, "bus-id", "", "Analyze the bus with this id")
	cmd.Flags().BoolVar(&f.all, "all", false, "Analyze every active bus")
	cmd.Flags().BoolVar(&f.includeInactive, "include-inactive", false, "Also analyze replaced files")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Analyze without storing results")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Export a JSON report")
	cmd.Flags().BoolVar(&f.asMarkdown, "markdown", false, "Export a Markdown report")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent analyses per bus (default ANALYSIS_WORKERS)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "Export directory (default ANALYSIS_OUTPUT_DIR)")
	cmd.MarkFlagsMutuallyExclusive("ppu", "bus-id", "all")
	return cmd
}
