package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/model"
)

// maxUploadParts caps the files accepted in one multi-file request.
const maxUploadParts = 10

var (
	errEmptyFile   = errors.New("empty file")
	errTooLarge    = errors.New("file exceeds limit")
	errTypeBlocked = errors.New("file type not allowed")
	errTooMany     = errors.New("too many files")
)

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

func (t *tempUpload) cleanup() {
	t.f.Close()
	os.Remove(t.path)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tipo, ok := queryType(w, r)
	if !ok {
		return
	}
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize*maxUploadParts+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Se esperaba un formulario multipart.")
		return
	}
	parts, err := s.readParts(mr)
	defer func() {
		for _, p := range parts {
			p.cleanup()
		}
	}()
	if err != nil {
		code, msg := uploadPartError(err, s.cfg.MaxFileSize)
		s.logFailure(r, code, err)
		respondError(w, code, msg)
		return
	}
	switch {
	case len(parts) == 0:
		respondError(w, http.StatusBadRequest, "Debes adjuntar al menos un archivo.")
		return
	case tipo.SingleActive() && len(parts) != 1:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s admite un solo archivo activo; adjunta exactamente uno.", tipo.DisplayName()))
		return
	}

	saved := make([]*model.FileRecord, 0, len(parts))
	for _, p := range parts {
		if _, err := p.f.Seek(0, io.SeekStart); err != nil {
			s.fail(w, r, model.WrapError(model.ErrUpload, "rewind temp file", err), "")
			return
		}
		rec, err := s.svc.Files.Upload(r.Context(), fleet.Upload{
			Bus:         *bus,
			Tipo:        tipo,
			FileName:    p.filename,
			ContentType: p.contentType,
			Size:        p.size,
			Body:        p.f,
		})
		if s.metrics != nil {
			s.metrics.RecordUpload(string(tipo), err)
		}
		if err != nil {
			code, msg := status(err, msgBusNotFound)
			s.logFailure(r, code, err)
			respondJSON(w, code, map[string]any{"error": msg, "archivos": saved})
			return
		}
		saved = append(saved, rec)
	}
	respondJSON(w, http.StatusCreated, map[string]any{"archivos": saved})
}

// readParts spools every "file" part to a temp file. The returned slice
// holds whatever was spooled, also on error, so the caller can clean up.
func (s *Server) readParts(mr *multipart.Reader) ([]*tempUpload, error) {
	var out []*tempUpload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		if len(out) == maxUploadParts {
			part.Close()
			return out, errTooMany
		}
		tmp, err := s.persistTemp(part)
		part.Close()
		if err != nil {
			return out, err
		}
		out = append(out, tmp)
	}
}

func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "busdocs-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (*tempUpload, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				return fail(errTooLarge)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write temp file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(fmt.Errorf("read file: %w", readErr))
		}
	}
	if written == 0 {
		return fail(errEmptyFile)
	}
	contentType := http.DetectContentType(sniff)
	if !s.allowedType(contentType) {
		return fail(fmt.Errorf("%w: %s", errTypeBlocked, contentType))
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: contentType,
		filename:    part.FileName(),
	}, nil
}

func (s *Server) allowedType(contentType string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func uploadPartError(err error, limit int64) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("El archivo supera el máximo de %d MB.", limit>>20)
	case errors.Is(err, errEmptyFile):
		return http.StatusBadRequest, "El archivo está vacío."
	case errors.Is(err, errTypeBlocked):
		return http.StatusUnsupportedMediaType, "Tipo de archivo no permitido. Usa PDF, PNG o JPG."
	case errors.Is(err, errTooMany):
		return http.StatusBadRequest, fmt.Sprintf("Puedes subir hasta %d archivos por vez.", maxUploadParts)
	default:
		return http.StatusBadRequest, msgUpload
	}
}
