// Package worker runs document analysis, either from asynq tasks or as a
// batch over whole buses.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/busdocs/internal/analysis"
	"github.com/dharsanguruparan/busdocs/internal/model"
	"github.com/dharsanguruparan/busdocs/internal/processing"
	"github.com/dharsanguruparan/busdocs/internal/queue"
)

// BusReader loads the bus a file belongs to.
type BusReader interface {
	GetByID(ctx context.Context, id string) (*model.Bus, error)
}

// FileReader loads file metadata.
type FileReader interface {
	Get(ctx context.Context, id string) (*model.FileRecord, error)
	ListByBus(ctx context.Context, busID string, onlyActive bool) ([]model.FileRecord, error)
}

// ObjectReader downloads stored files.
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// AnalysisWriter stores analysis rows.
type AnalysisWriter interface {
	Insert(ctx context.Context, rec *model.AnalysisRecord) error
}

// Options controls a batch run.
type Options struct {
	// OnlyActive skips files that were replaced.
	OnlyActive bool
	// DryRun analyzes without writing rows.
	DryRun bool
}

// Runner downloads files, analyzes them and records the result.
type Runner struct {
	buses    BusReader
	files    FileReader
	objects  ObjectReader
	analyses AnalysisWriter
	workers  int
	logger   *slog.Logger
	newID    func() string
}

// NewRunner constructs a Runner. workers bounds batch concurrency.
func NewRunner(buses BusReader, files FileReader, objects ObjectReader, analyses AnalysisWriter, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		buses:    buses,
		files:    files,
		objects:  objects,
		analyses: analyses,
		workers:  workers,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// AnalyzeFile analyzes a single file record by id.
func (r *Runner) AnalyzeFile(ctx context.Context, fileID string, dryRun bool) (*analysis.Result, error) {
	file, err := r.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", fileID, err)
	}
	bus, err := r.buses.GetByID(ctx, file.BusID)
	if err != nil {
		return nil, fmt.Errorf("load bus %s: %w", file.BusID, err)
	}
	res, err := r.analyze(ctx, *bus, *file, dryRun)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// AnalyzeBuses analyzes the files of every bus in order. Failed files are
// logged and reported in the joined error; the results of the others are
// still returned.
func (r *Runner) AnalyzeBuses(ctx context.Context, buses []model.Bus, opts Options) ([]analysis.Result, error) {
	var (
		out  []analysis.Result
		errs []error
	)
	for _, bus := range buses {
		res, err := r.AnalyzeBus(ctx, bus, opts)
		out = append(out, res...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// AnalyzeBus analyzes the files of one bus on the worker pool.
func (r *Runner) AnalyzeBus(ctx context.Context, bus model.Bus, opts Options) ([]analysis.Result, error) {
	files, err := r.files.ListByBus(ctx, bus.ID, opts.OnlyActive)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", bus.PPU, err)
	}
	if len(files) == 0 {
		r.logger.Info("bus has no digital documents", "ppu", bus.PPU)
		return nil, nil
	}
	r.logger.Info("analyzing bus", "ppu", bus.PPU, "numero_interno", bus.NumeroInterno, "files", len(files))

	results := make([]*analysis.Result, len(files))
	jobs := make([]processing.Job, len(files))
	for i, f := range files {
		jobs[i] = processing.Job{Index: i, FileID: f.ID}
	}
	pool := processing.New(r.workers, func(ctx context.Context, job processing.Job) error {
		res, err := r.analyze(ctx, bus, files[job.Index], opts.DryRun)
		if err != nil {
			return err
		}
		results[job.Index] = &res
		return nil
	}, r.logger)
	errs := pool.Run(ctx, jobs)

	out := make([]analysis.Result, 0, len(files))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Runner) analyze(ctx context.Context, bus model.Bus, file model.FileRecord, dryRun bool) (analysis.Result, error) {
	data, _, err := r.objects.Get(ctx, file.StoragePath)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("download %s: %w", file.StoragePath, err)
	}
	res := analysis.New(bus).Analyze(file, data)
	if dryRun {
		return res, nil
	}
	rec := res.Record(r.newID())
	if err := r.analyses.Insert(ctx, &rec); err != nil {
		return analysis.Result{}, fmt.Errorf("save analysis of %s: %w", file.ID, err)
	}
	r.logger.Info("document analyzed", "file_id", file.ID, "ppu", bus.PPU, "tipo", file.TipoDocumento, "puntaje", *rec.PuntajeConfianza)
	return res, nil
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	runner *Runner
	logger *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner *Runner, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{runner: runner, logger: logger}
}

// Handler registers the analyze job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.AnalyzeDocumentTask, p.handleAnalyze)
	return mux
}

func (p *Processor) handleAnalyze(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseAnalyzePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if _, err := p.runner.AnalyzeFile(ctx, payload.FileID, false); err != nil {
		p.logger.Error("analysis failed", "file_id", payload.FileID, "error", err)
		if model.IsKind(err, model.ErrNotFound) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
