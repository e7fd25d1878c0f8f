// Package fleet holds the services behind every user action: bus lookup,
// status bookkeeping, file uploads, completeness reports and print sheets.
// Each service takes its stores as interfaces and recovers store failures
// into the error kinds of package model.
package fleet

import (
	"context"
	"io"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

// BusStore is the read side of the buses table.
type BusStore interface {
	Search(ctx context.Context, term string, limit int) ([]model.Bus, error)
	GetByPPU(ctx context.Context, ppu string) (*model.Bus, error)
	GetByID(ctx context.Context, id string) (*model.Bus, error)
	List(ctx context.Context, onlyActive bool) ([]model.Bus, error)
}

// StatusStore persists one status row per (bus, type).
type StatusStore interface {
	ListByBus(ctx context.Context, busID string) ([]model.StatusRecord, error)
	ListAll(ctx context.Context) ([]model.StatusRecord, error)
	Upsert(ctx context.Context, records []model.StatusRecord) error
	ResolvePending(ctx context.Context, busID string, at time.Time) (int64, error)
}

// FileStore persists uploaded file metadata.
type FileStore interface {
	ListByBusType(ctx context.Context, busID string, tipo model.DocumentType) ([]model.FileRecord, error)
	ListByBus(ctx context.Context, busID string, onlyActive bool) ([]model.FileRecord, error)
	ListActive(ctx context.Context) ([]model.FileRecord, error)
	Get(ctx context.Context, id string) (*model.FileRecord, error)
	Insert(ctx context.Context, rec *model.FileRecord) error
	Deactivate(ctx context.Context, busID string, tipo model.DocumentType) (int64, error)
}

// AnalysisStore reads analysis rows produced by the worker.
type AnalysisStore interface {
	ListByBusType(ctx context.Context, busID string, tipo model.DocumentType) ([]model.AnalysisRecord, error)
	ListByFile(ctx context.Context, fileID string) ([]model.AnalysisRecord, error)
}

// ObjectStore is the document bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// AnalysisEnqueuer schedules out-of-band analysis of a stored file.
type AnalysisEnqueuer interface {
	EnqueueAnalyze(ctx context.Context, fileID string) error
}

// readErr keeps not-found errors as they are and tags anything else as a
// read failure.
func readErr(op string, err error) error {
	if model.IsKind(err, model.ErrNotFound) {
		return err
	}
	return model.WrapError(model.ErrRead, op, err)
}
