package fleet

import (
	"context"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// StatusSheet is the complete status view of one bus.
type StatusSheet struct {
	Estados   model.StateMap       `json:"estados"`
	Registros []model.StatusRecord `json:"registros"`
}

// StatusBook reads and saves per-bus document states.
type StatusBook struct {
	statuses StatusStore
	now      func() time.Time
}

// NewStatusBook constructs a StatusBook.
func NewStatusBook(statuses StatusStore) *StatusBook {
	return &StatusBook{statuses: statuses, now: time.Now}
}

// Fetch returns the mapping of every catalog type to its state. Types with
// no stored row read as NO_TIENE. On failure the mapping is the all-missing
// default.
func (s *StatusBook) Fetch(ctx context.Context, busID string) (StatusSheet, error) {
	records, err := s.statuses.ListByBus(ctx, busID)
	if err != nil {
		return StatusSheet{Estados: model.NewStateMap(), Registros: []model.StatusRecord{}}, model.WrapError(model.ErrRead, "fetch statuses", err)
	}
	return StatusSheet{Estados: compliance.StatesFromRecords(records), Registros: records}, nil
}

// Save writes all six states of the bus in one upsert, with one shared
// timestamp and one observation for the batch, stored as given. It returns the types left
// NO_TIENE or DANADO, in catalog order.
func (s *StatusBook) Save(ctx context.Context, busID string, states model.StateMap, observacion *string) ([]model.DocumentType, error) {
	if busID == "" {
		return nil, model.WrapError(model.ErrInvalidInput, "save statuses", errMissingBus)
	}
	if err := states.Validate(); err != nil {
		return nil, err
	}
	at := s.now().UTC()
	records := make([]model.StatusRecord, 0, len(model.DocumentTypes))
	for _, tipo := range model.DocumentTypes {
		records = append(records, model.StatusRecord{
			BusID:         busID,
			TipoDocumento: tipo,
			Estado:        states[tipo],
			Observacion:   observacion,
			UpdatedAt:     at,
		})
	}
	if err := s.statuses.Upsert(ctx, records); err != nil {
		return nil, model.WrapError(model.ErrWrite, "save statuses", err)
	}
	return compliance.CriticalTypes(states), nil
}
