// Package processing runs batches of jobs on a bounded set of goroutines.
package processing

import (
	"context"
	"log/slog"
	"sync"
)

// Job is one unit of batch work. Index is its position in the batch.
type Job struct {
	Index  int
	FileID string
}

// HandlerFunc processes a single job.
type HandlerFunc func(ctx context.Context, job Job) error

// Processor fans jobs out to a fixed number of workers.
type Processor struct {
	workers int
	handle  HandlerFunc
	logger  *slog.Logger
}

// New builds a Processor. workers below one is treated as one.
func New(workers int, handle HandlerFunc, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{workers: workers, handle: handle, logger: logger}
}

// Run processes every job and returns one error slot per job, in job order.
// Jobs not started before ctx is cancelled get ctx.Err().
func (p *Processor) Run(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))
	queue := make(chan int, p.workers*4)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				if err := p.handle(ctx, jobs[i]); err != nil {
					p.logger.Warn("job failed", "file_id", jobs[i].FileID, "error", err)
					errs[i] = err
				}
			}
		}()
	}

	for i := range jobs {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return errs
}
