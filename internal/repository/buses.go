// Package repository wraps all SQL used by the API, worker and CLI. Each
// store scans into typed rows and rejects rows that break the catalog.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// ErrInvalidRow marks rows with NULL required columns or values outside the catalog.
var ErrInvalidRow = errors.New("invalid row")

const busColumns = `id, ppu, numero_interno, activo, created_at`

// BusRepository reads the buses table. Buses are onboarded elsewhere.
type BusRepository struct {
	db database.DBTX
}

// NewBusRepository constructs a repository.
func NewBusRepository(db database.DBTX) *BusRepository {
	return &BusRepository{db: db}
}

// Search returns buses whose plate or internal number contains term, case
// insensitive, ordered by plate.
func (r *BusRepository) Search(ctx context.Context, term string, limit int) ([]model.Bus, error) {
	pattern := "%" + escapeLike(term) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+busColumns+`
		FROM buses
		WHERE ppu ILIKE $1 ESCAPE '\' OR numero_interno ILIKE $1 ESCAPE '\'
		ORDER BY ppu
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search buses: %w", err)
	}
	return collectBuses(rows)
}

// GetByPPU looks a bus up by its normalized plate.
func (r *BusRepository) GetByPPU(ctx context.Context, ppu string) (*model.Bus, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+busColumns+`
		FROM buses WHERE upper(ppu) = $1
	`, model.NormalizeKey(ppu))
	bus, err := scanBus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bus %s: %w", ppu, model.ErrNotFound)
		}
		return nil, fmt.Errorf("select bus: %w", err)
	}
	return bus, nil
}

// GetByID returns a bus by id.
func (r *BusRepository) GetByID(ctx context.Context, id string) (*model.Bus, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+busColumns+`
		FROM buses WHERE id = $1
	`, id)
	bus, err := scanBus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bus %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("select bus: %w", err)
	}
	return bus, nil
}

// List returns the whole fleet ordered by plate, optionally only active buses.
func (r *BusRepository) List(ctx context.Context, onlyActive bool) ([]model.Bus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+busColumns+`
		FROM buses
		WHERE (NOT $1::boolean OR activo)
		ORDER BY ppu
	`, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}
	return collectBuses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBus(row rowScanner) (*model.Bus, error) {
	var (
		bus       model.Bus
		ppu       sql.NullString
		numero    sql.NullString
		createdAt sql.NullTime
	)
	if err := row.Scan(&bus.ID, &ppu, &numero, &bus.Activo, &createdAt); err != nil {
		return nil, err
	}
	if bus.ID == "" || !ppu.Valid || strings.TrimSpace(ppu.String) == "" || !numero.Valid {
		return nil, fmt.Errorf("bus %q: missing required column: %w", bus.ID, ErrInvalidRow)
	}
	bus.PPU = model.NormalizeKey(ppu.String)
	bus.NumeroInterno = model.NormalizeKey(numero.String)
	if createdAt.Valid {
		bus.CreatedAt = createdAt.Time
	}
	return &bus, nil
}

func collectBuses(rows *sql.Rows) ([]model.Bus, error) {
	defer rows.Close()
	out := []model.Bus{}
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bus: %w", err)
		}
		out = append(out, *bus)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buses: %w", err)
	}
	return out, nil
}

// escapeLike neutralises LIKE wildcards typed by the user.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func nullTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}
