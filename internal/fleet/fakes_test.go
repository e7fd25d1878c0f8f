package fleet

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

var errBoom = errors.New("connection reset")

// fakeDB implements every store over plain maps.
type fakeDB struct {
	mu sync.Mutex

	buses    []model.Bus
	statuses map[string]model.StatusRecord
	files    []model.FileRecord
	analyses []model.AnalysisRecord

	searchCalls int
	failSearch  error
	failList    error
	failUpsert  error
	failInsert  error
	failDeact   error
	failStatus  error
}

func newFakeDB(buses ...model.Bus) *fakeDB {
	return &fakeDB{buses: buses, statuses: map[string]model.StatusRecord{}}
}

func statusKey(busID string, tipo model.DocumentType) string { return busID + "|" + string(tipo) }

func (f *fakeDB) Search(_ context.Context, term string, limit int) ([]model.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	out := []model.Bus{}
	for _, b := range f.buses {
		if containsFold(b.PPU, term) || containsFold(b.NumeroInterno, term) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PPU < out[j].PPU })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return len(sub) == 0 || indexFold(s, sub) >= 0
}

func indexFold(s, sub string) int {
	s, sub = model.NormalizeKey(s), model.NormalizeKey(sub)
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (f *fakeDB) GetByPPU(_ context.Context, ppu string) (*model.Bus, error) {
	for _, b := range f.buses {
		if b.PPU == model.NormalizeKey(ppu) {
			b := b
			return &b, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeDB) GetByID(_ context.Context, id string) (*model.Bus, error) {
	for _, b := range f.buses {
		if b.ID == id {
			b := b
			return &b, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeDB) List(_ context.Context, onlyActive bool) ([]model.Bus, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	out := []model.Bus{}
	for _, b := range f.buses {
		if !onlyActive || b.Activo {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeDB) ListByBus(_ context.Context, busID string) ([]model.StatusRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != nil {
		return nil, f.failStatus
	}
	out := []model.StatusRecord{}
	for _, t := range model.DocumentTypes {
		if rec, ok := f.statuses[statusKey(busID, t)]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDB) ListAll(_ context.Context) ([]model.StatusRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != nil {
		return nil, f.failStatus
	}
	out := []model.StatusRecord{}
	for _, rec := range f.statuses {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeDB) Upsert(_ context.Context, records []model.StatusRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return f.failUpsert
	}
	for _, rec := range records {
		f.statuses[statusKey(rec.BusID, rec.TipoDocumento)] = rec
	}
	return nil
}

func (f *fakeDB) ResolvePending(_ context.Context, busID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return 0, f.failUpsert
	}
	var n int64
	for k, rec := range f.statuses {
		if rec.BusID == busID && rec.Estado != model.Tiene {
			rec.Estado = model.Tiene
			rec.UpdatedAt = at
			f.statuses[k] = rec
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) ListByBusType(_ context.Context, busID string, tipo model.DocumentType) ([]model.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.FileRecord{}
	for _, r := range f.files {
		if r.BusID == busID && r.TipoDocumento == tipo {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *fakeDB) listFilesByBus(busID string, onlyActive bool) []model.FileRecord {
	out := []model.FileRecord{}
	for _, r := range f.files {
		if r.BusID == busID && (!onlyActive || r.Activo) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeDB) ListActive(_ context.Context) ([]model.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.FileRecord{}
	for _, r := range f.files {
		if r.Activo {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDB) Get(_ context.Context, id string) (*model.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.files {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeDB) Insert(_ context.Context, rec *model.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	f.files = append(f.files, *rec)
	return nil
}

func (f *fakeDB) Deactivate(_ context.Context, busID string, tipo model.DocumentType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeact != nil {
		return 0, f.failDeact
	}
	var n int64
	for i := range f.files {
		if f.files[i].BusID == busID && f.files[i].TipoDocumento == tipo && f.files[i].Activo {
			f.files[i].Activo = false
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) activeCount(busID string, tipo model.DocumentType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.files {
		if r.BusID == busID && r.TipoDocumento == tipo && r.Activo {
			n++
		}
	}
	return n
}

// fileStore adapts fakeDB to FileStore, whose ListByBus collides with the
// status store method of the same name.
type fileStore struct{ *fakeDB }

func (s fileStore) ListByBus(_ context.Context, busID string, onlyActive bool) ([]model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listFilesByBus(busID, onlyActive), nil
}

// analysisStore adapts fakeDB to AnalysisStore.
type analysisStore struct{ *fakeDB }

func (s analysisStore) ListByBusType(_ context.Context, busID string, tipo model.DocumentType) ([]model.AnalysisRecord, error) {
	out := []model.AnalysisRecord{}
	for _, a := range s.analyses {
		if a.BusID == busID && a.TipoDocumento == tipo {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s analysisStore) ListByFile(_ context.Context, fileID string) ([]model.AnalysisRecord, error) {
	out := []model.AnalysisRecord{}
	for _, a := range s.analyses {
		if a.DocumentoArchivoID == fileID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeObjects is an ObjectStore with switchable failures.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	failPut error
	failURL error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (o *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if o.failPut != nil {
		return o.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	return nil
}

func (o *fakeObjects) Get(_ context.Context, key string) ([]byte, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, "", model.ErrNotFound
	}
	return data, "application/pdf", nil
}

func (o *fakeObjects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	o.removed = append(o.removed, key)
	return nil
}

func (o *fakeObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if o.failURL != nil {
		return "", o.failURL
	}
	return "https://signed.example/" + key + "?sig=1", nil
}

func (o *fakeObjects) PublicURL(key string) string {
	return "https://public.example/" + key
}

type fakeQueue struct {
	ids  []string
	fail error
}

func (q *fakeQueue) EnqueueAnalyze(_ context.Context, fileID string) error {
	q.ids = append(q.ids, fileID)
	return q.fail
}
