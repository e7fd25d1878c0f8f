package fleet

import (
	"context"
	"log/slog"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// PrintSheet is everything a printed status page shows.
type PrintSheet struct {
	Bus         model.Bus               `json:"bus"`
	Request     compliance.PrintRequest `json:"solicitud"`
	Rows        []compliance.PrintRow   `json:"filas"`
	GeneratedAt time.Time               `json:"generado_en"`

	// Reconcile is set when completing the print must flip stored rows to TIENE.
	Reconcile bool `json:"-"`
}

// Printer derives print sheets and applies the "todo" reconciliation.
type Printer struct {
	statuses StatusStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewPrinter constructs a Printer.
func NewPrinter(statuses StatusStore, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Printer{statuses: statuses, logger: logger, now: time.Now}
}

// Prepare reads the bus statuses and lists the rows for req.
func (p *Printer) Prepare(ctx context.Context, bus model.Bus, req compliance.PrintRequest) (*PrintSheet, error) {
	records, err := p.statuses.ListByBus(ctx, bus.ID)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "print statuses", err)
	}
	now := p.now().UTC()
	return &PrintSheet{
		Bus:         bus,
		Request:     req,
		Rows:        compliance.PrintRows(req, records, now),
		GeneratedAt: now,
		Reconcile:   compliance.NeedsReconcile(req, records),
	}, nil
}

// Complete runs after the sheet has been rendered. In "todo" mode it marks
// every stored non-TIENE row of the bus as TIENE. Types with no stored row are
// left absent. It returns how many rows changed.
func (p *Printer) Complete(ctx context.Context, sheet *PrintSheet) (int64, error) {
	if sheet == nil || !sheet.Reconcile {
		return 0, nil
	}
	n, err := p.statuses.ResolvePending(ctx, sheet.Bus.ID, p.now().UTC())
	if err != nil {
		return 0, model.WrapError(model.ErrWrite, "reconcile statuses", err)
	}
	p.logger.Info("print reconciled statuses", "bus_id", sheet.Bus.ID, "ppu", sheet.Bus.PPU, "rows", n)
	return n, nil
}
