package fleet

import (
	"context"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// Reports computes fleet-wide views from full table reads.
type Reports struct {
	buses    BusStore
	statuses StatusStore
	files    FileStore
}

// NewReports constructs a Reports service.
func NewReports(buses BusStore, statuses StatusStore, files FileStore) *Reports {
	return &Reports{buses: buses, statuses: statuses, files: files}
}

// Completeness evaluates every bus. The summary always covers the whole
// fleet; onlyIncomplete trims the detail list.
func (r *Reports) Completeness(ctx context.Context, onlyIncomplete bool) (compliance.Report, error) {
	details, err := r.Details(ctx)
	if err != nil {
		return compliance.BuildReport(nil, onlyIncomplete), err
	}
	return compliance.BuildReport(details, onlyIncomplete), nil
}

// Details returns the completeness verdict of every bus, ordered by plate.
func (r *Reports) Details(ctx context.Context) ([]model.CompletenessDetail, error) {
	buses, err := r.buses.List(ctx, false)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "list buses", err)
	}
	statuses, err := r.statuses.ListAll(ctx)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "list statuses", err)
	}
	files, err := r.files.ListActive(ctx)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "list files", err)
	}
	return compliance.EvaluateFleet(buses, statuses, files), nil
}

// Fleet returns every bus with its status rows, filtered by c.
func (r *Reports) Fleet(ctx context.Context, c compliance.Criteria) ([]model.FleetEntry, error) {
	buses, err := r.buses.List(ctx, false)
	if err != nil {
		return []model.FleetEntry{}, model.WrapError(model.ErrRead, "list buses", err)
	}
	statuses, err := r.statuses.ListAll(ctx)
	if err != nil {
		return []model.FleetEntry{}, model.WrapError(model.ErrRead, "list statuses", err)
	}
	return compliance.Filter(compliance.GroupFleet(buses, statuses), c), nil
}
