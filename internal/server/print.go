package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/model"
	"github.com/dharsanguruparan/busdocs/internal/s3storage"
	"github.com/dharsanguruparan/busdocs/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"fecha": func(t time.Time) string {
		if t.IsZero() {
			return "—"
		}
		return t.Local().Format("02-01-2006 15:04")
	},
	"clase": func(s model.DocumentState) string {
		return strings.ToLower(string(s))
	},
	"esImagen": func(mime string) bool {
		return strings.HasPrefix(mime, "image/")
	},
}).ParseFS(templateFS, "templates/*.html"))

type filePage struct {
	Bus     *model.Bus
	File    model.FileRecord
	Nombre  string
	URL     string
	Firmada bool
}

type messagePage struct {
	Titulo  string
	Mensaje string
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	bus, err := s.svc.Directory.Lookup(r.Context(), chi.URLParam(r, "ppu"))
	if err != nil {
		s.failPage(w, r, err, msgBusNotFound)
		return
	}
	q := r.URL.Query()
	req, err := compliance.ParsePrintRequest(q.Get("modo"), q.Get("tipos"))
	if err != nil {
		s.renderMessage(w, http.StatusBadRequest, "Solicitud inválida", "Alguno de los tipos de documento pedidos no existe.")
		return
	}
	sheet, err := s.svc.Printer.Prepare(r.Context(), *bus, req)
	if err != nil {
		s.failPage(w, r, err, "")
		return
	}
	if !s.render(w, r, http.StatusOK, "print.html", sheet) {
		return
	}

	// The page is out; reconciliation must not depend on the client staying.
	reconciled, err := s.svc.Printer.Complete(context.WithoutCancel(r.Context()), sheet)
	if err != nil {
		s.logFailure(r, http.StatusBadGateway, err)
	}
	if s.metrics != nil {
		s.metrics.RecordPrint(string(req.Mode), reconciled)
	}
}

func (s *Server) handlePrintFile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.failPage(w, r, err, msgFileNotFound)
		return
	}
	bus, err := s.svc.Directory.LookupID(r.Context(), rec.BusID)
	if err != nil {
		// the file is still printable without its bus header
		s.logFailure(r, http.StatusOK, err)
	}
	link, signed := s.svc.Files.URL(r.Context(), *rec)
	s.render(w, r, http.StatusOK, "file.html", filePage{
		Bus:     bus,
		File:    *rec,
		Nombre:  rec.TipoDocumento.DisplayName(),
		URL:     link,
		Firmada: signed,
	})
}

// handleObject streams an object of the memory backend behind a signed link.
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil || s.svc.Objects == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	key, expires, signature := q.Get("key"), q.Get("expires"), q.Get("signature")
	if key == "" || expires == "" || signature == "" {
		respondError(w, http.StatusBadRequest, "El enlace está incompleto.")
		return
	}
	if !s.signer.Validate(key, expires, signature, s.now()) {
		respondError(w, http.StatusForbidden, "El enlace no es válido o ya expiró.")
		return
	}
	data, contentType, err := s.svc.Objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, s3storage.ErrNotFound) {
			err = model.WrapError(model.ErrNotFound, "get object", err)
		} else {
			err = model.WrapError(model.ErrRead, "get object", err)
		}
		s.fail(w, r, err, msgFileNotFound)
		return
	}
	name := path.Base(key)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// render executes a template into a buffer first so template errors still
// produce a clean error page. It reports whether the page was written.
func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) bool {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logFailure(r, http.StatusInternalServerError, err)
		s.renderMessage(w, http.StatusInternalServerError, "Error", msgUnexpected)
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
	return true
}

func (s *Server) renderMessage(w http.ResponseWriter, code int, title, msg string) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "message.html", messagePage{Titulo: title, Mensaje: msg}); err != nil {
		http.Error(w, msg, code)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// failPage is fail for HTML routes.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	code, msg := status(err, notFound)
	s.logFailure(r, code, err)
	title := "Error"
	if code == http.StatusNotFound {
		title = "No encontrado"
	}
	s.renderMessage(w, code, title, msg)
}

var _ fleet.ObjectStore = (*storage.MemoryStore)(nil)
var _ fleet.ObjectStore = (*s3storage.Storage)(nil)
