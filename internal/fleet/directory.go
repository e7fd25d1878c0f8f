package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

// MinSearchLength is the shortest term that reaches the store.
const MinSearchLength = 2

const defaultSearchLimit = 10

// Directory searches and looks up buses.
type Directory struct {
	buses  BusStore
	limit  int
	logger *slog.Logger
}

// NewDirectory builds a Directory capped at limit results per search.
func NewDirectory(buses BusStore, limit int, logger *slog.Logger) *Directory {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{buses: buses, limit: limit, logger: logger}
}

// Search returns buses whose plate or internal number contains term. Terms
// shorter than MinSearchLength return an empty list without a query. The
// returned slice is never nil, also when err is set.
func (d *Directory) Search(ctx context.Context, term string) ([]model.Bus, error) {
	term = model.NormalizeKey(term)
	if utf8.RuneCountInString(term) < MinSearchLength {
		return []model.Bus{}, nil
	}
	buses, err := d.buses.Search(ctx, term, d.limit)
	if err != nil {
		d.logger.Warn("bus search failed", "term", term, "error", err)
		return []model.Bus{}, model.WrapError(model.ErrRead, "search buses", err)
	}
	return buses, nil
}

// Lookup returns the bus with the given plate.
func (d *Directory) Lookup(ctx context.Context, ppu string) (*model.Bus, error) {
	ppu = model.NormalizeKey(ppu)
	if ppu == "" {
		return nil, fmt.Errorf("empty plate: %w", model.ErrInvalidInput)
	}
	bus, err := d.buses.GetByPPU(ctx, ppu)
	if err != nil {
		return nil, readErr("lookup bus", err)
	}
	return bus, nil
}

// LookupID returns the bus with the given id.
func (d *Directory) LookupID(ctx context.Context, id string) (*model.Bus, error) {
	bus, err := d.buses.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("lookup bus", err)
	}
	return bus, nil
}

// All returns the fleet, optionally only active buses.
func (d *Directory) All(ctx context.Context, onlyActive bool) ([]model.Bus, error) {
	buses, err := d.buses.List(ctx, onlyActive)
	if err != nil {
		return []model.Bus{}, model.WrapError(model.ErrRead, "list buses", err)
	}
	return buses, nil
}
