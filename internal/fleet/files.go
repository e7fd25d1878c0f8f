package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

var errMissingBus = errors.New("missing bus id")

const defaultSignedTTL = 10 * time.Minute

// Upload is one file to store for a (bus, type) pair.
type Upload struct {
	Bus         model.Bus
	Tipo        model.DocumentType
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileView is a file record with its most recent analysis, if any.
type FileView struct {
	model.FileRecord
	Analisis *model.AnalysisRecord `json:"analisis,omitempty"`
}

// PrintAction tells the print surface what to render for a type.
type PrintAction string

const (
	// PrintFile renders the stored file inline.
	PrintFile PrintAction = "archivo"
	// PrintSummary renders the blank status summary for the type.
	PrintSummary PrintAction = "resumen"
)

// PrintTarget is the print choice for one document type of a bus.
type PrintTarget struct {
	TipoDocumento model.DocumentType `json:"tipo_documento"`
	Nombre        string             `json:"nombre"`
	Accion        PrintAction        `json:"accion"`
	Archivo       *model.FileRecord  `json:"archivo,omitempty"`
	URL           string             `json:"url"`
}

// FileRegistryOptions tunes a FileRegistry. Zero values pick defaults.
type FileRegistryOptions struct {
	SignedURLTTL time.Duration
	Queue        AnalysisEnqueuer
	Logger       *slog.Logger
}

// FileRegistry lists, uploads and links document files.
type FileRegistry struct {
	files    FileStore
	analyses *Analyses
	objects  ObjectStore
	queue    AnalysisEnqueuer
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewFileRegistry constructs a FileRegistry.
func NewFileRegistry(files FileStore, analyses *Analyses, objects ObjectStore, opts FileRegistryOptions) *FileRegistry {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = defaultSignedTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &FileRegistry{
		files:    files,
		analyses: analyses,
		objects:  objects,
		queue:    opts.Queue,
		ttl:      opts.SignedURLTTL,
		logger:   opts.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// List returns the files of a (bus, type) pair, newest upload first, each
// with its latest analysis.
func (r *FileRegistry) List(ctx context.Context, busID string, tipo model.DocumentType) ([]FileView, error) {
	if !tipo.Valid() {
		return []FileView{}, fmt.Errorf("document type %q: %w", tipo, model.ErrInvalidInput)
	}
	files, err := r.files.ListByBusType(ctx, busID, tipo)
	if err != nil {
		return []FileView{}, model.WrapError(model.ErrRead, "list files", err)
	}
	latest := map[string]model.AnalysisRecord{}
	if r.analyses != nil {
		latest, err = r.analyses.LatestByFile(ctx, busID, tipo)
		if err != nil {
			// files are still useful without their analyses
			r.logger.Warn("list analyses failed", "bus_id", busID, "tipo", tipo, "error", err)
		}
	}
	out := make([]FileView, 0, len(files))
	for _, f := range files {
		view := FileView{FileRecord: f}
		if a, ok := latest[f.ID]; ok {
			a := a
			view.Analisis = &a
		}
		out = append(out, view)
	}
	return out, nil
}

// Upload stores the object first and the metadata second. For single-active
// types every prior record of the pair is deactivated between the two. When
// a database step fails the object is removed again; deactivated records are
// not reactivated, so the pair may be left without an active file. Every
// failure is reported as model.ErrUpload.
func (r *FileRegistry) Upload(ctx context.Context, up Upload) (*model.FileRecord, error) {
	if up.Bus.ID == "" {
		return nil, model.WrapError(model.ErrInvalidInput, "upload file", errMissingBus)
	}
	if !up.Tipo.Valid() {
		return nil, fmt.Errorf("document type %q: %w", up.Tipo, model.ErrInvalidInput)
	}
	if up.Body == nil {
		return nil, fmt.Errorf("empty upload: %w", model.ErrInvalidInput)
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	at := r.now().UTC()
	id := r.newID()
	rec := &model.FileRecord{
		ID:            id,
		BusID:         up.Bus.ID,
		TipoDocumento: up.Tipo,
		StoragePath:   StoragePath(up.Bus.PPU, up.Tipo, at, id, up.FileName),
		MimeType:      contentType,
		UploadedAt:    at,
		Activo:        true,
	}

	if err := r.objects.Put(ctx, rec.StoragePath, up.Body, up.Size, contentType); err != nil {
		return nil, model.WrapError(model.ErrUpload, "store object", err)
	}
	if up.Tipo.SingleActive() {
		n, err := r.files.Deactivate(ctx, rec.BusID, rec.TipoDocumento)
		if err != nil {
			r.discard(ctx, rec.StoragePath)
			return nil, model.WrapError(model.ErrUpload, "deactivate files", err)
		}
		r.logger.Debug("previous files deactivated", "bus_id", rec.BusID, "tipo", rec.TipoDocumento, "count", n)
	}
	if err := r.files.Insert(ctx, rec); err != nil {
		r.discard(ctx, rec.StoragePath)
		return nil, model.WrapError(model.ErrUpload, "insert file", err)
	}

	r.logger.Info("file uploaded", "file_id", rec.ID, "bus_id", rec.BusID, "tipo", rec.TipoDocumento, "path", rec.StoragePath)
	if r.queue != nil {
		if err := r.queue.EnqueueAnalyze(ctx, rec.ID); err != nil {
			r.logger.Warn("enqueue analysis failed", "file_id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

func (r *FileRegistry) discard(ctx context.Context, key string) {
	if err := r.objects.Remove(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Error("orphaned object left in bucket", "path", key, "error", err)
	}
}

// Get returns a file record by id.
func (r *FileRegistry) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("empty file id: %w", model.ErrInvalidInput)
	}
	rec, err := r.files.Get(ctx, id)
	if err != nil {
		return nil, readErr("get file", err)
	}
	return rec, nil
}

// ActiveFile returns the active record of the pair, else the most recent
// inactive one, else nil.
func (r *FileRegistry) ActiveFile(ctx context.Context, busID string, tipo model.DocumentType) (*model.FileRecord, error) {
	files, err := r.files.ListByBusType(ctx, busID, tipo)
	if err != nil {
		return nil, model.WrapError(model.ErrRead, "active file", err)
	}
	return pickActive(files), nil
}

// PrintTargets returns the print choice of every catalog type for the bus.
func (r *FileRegistry) PrintTargets(ctx context.Context, bus model.Bus) ([]PrintTarget, error) {
	files, err := r.files.ListByBus(ctx, bus.ID, false)
	if err != nil {
		return []PrintTarget{}, model.WrapError(model.ErrRead, "print targets", err)
	}
	byType := map[model.DocumentType][]model.FileRecord{}
	for _, f := range files {
		byType[f.TipoDocumento] = append(byType[f.TipoDocumento], f)
	}
	out := make([]PrintTarget, 0, len(model.DocumentTypes))
	for _, tipo := range model.DocumentTypes {
		target := PrintTarget{TipoDocumento: tipo, Nombre: tipo.DisplayName(), Accion: PrintSummary}
		if f := pickActive(byType[tipo]); f != nil {
			target.Accion = PrintFile
			target.Archivo = f
			target.URL = "/print/file/" + url.PathEscape(f.ID)
		} else {
			q := url.Values{}
			q.Set("modo", "faltantes")
			q.Set("tipos", string(tipo))
			target.URL = "/print/" + url.PathEscape(bus.PPU) + "?" + q.Encode()
		}
		out = append(out, target)
	}
	return out, nil
}

// URL returns a signed link to the file object, falling back to its public
// URL when signing fails. signed reports which one was returned.
func (r *FileRegistry) URL(ctx context.Context, rec model.FileRecord) (link string, signed bool) {
	link, err := r.objects.SignedURL(ctx, rec.StoragePath, r.ttl)
	if err == nil && link != "" {
		return link, true
	}
	r.logger.Warn("signed url failed, using public url", "file_id", rec.ID, "error", err)
	return r.objects.PublicURL(rec.StoragePath), false
}

// pickActive prefers an active record, else the most recent upload.
func pickActive(files []model.FileRecord) *model.FileRecord {
	var newest *model.FileRecord
	for i := range files {
		f := files[i]
		if f.Activo {
			if newest == nil || !newest.Activo || f.UploadedAt.After(newest.UploadedAt) {
				newest = &f
			}
			continue
		}
		if newest == nil || (!newest.Activo && f.UploadedAt.After(newest.UploadedAt)) {
			newest = &f
		}
	}
	return newest
}

// StoragePath builds buses/<ppu>/<tipo>/<unix millis>-<file id>-<file name>.
// The file id keeps keys unique when uploads share a millisecond and a name.
func StoragePath(ppu string, tipo model.DocumentType, at time.Time, fileID, fileName string) string {
	return fmt.Sprintf("buses/%s/%s/%d-%s-%s", model.NormalizeKey(ppu), tipo, at.UnixMilli(), sanitizeFileName(fileID), sanitizeFileName(fileName))
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "archivo"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
