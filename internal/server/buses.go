package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/busdocs/internal/model"
)

const maxStatusBody = 64 << 10

type statusRequest struct {
	Estados     map[string]string `json:"estados"`
	Observacion *string           `json:"observacion"`
}

type statusResponse struct {
	Critical []model.DocumentType `json:"critical"`
	PrintURL string               `json:"print_url,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	buses, err := s.svc.Directory.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		code, msg := status(err, "")
		s.logFailure(r, code, err)
		respondJSON(w, code, map[string]any{"buses": buses, "error": msg})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"buses": buses})
}

func (s *Server) handleBus(w http.ResponseWriter, r *http.Request) {
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, bus)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	sheet, err := s.svc.Statuses.Fetch(r.Context(), bus.ID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bus":       bus,
		"estados":   sheet.Estados,
		"registros": sheet.Registros,
	})
}

func (s *Server) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	var req statusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStatusBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "El cuerpo de la solicitud no es JSON válido.")
		return
	}
	states, msg := parseStates(req.Estados)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	critical, err := s.svc.Statuses.Save(r.Context(), bus.ID, states, req.Observacion)
	if err != nil {
		s.fail(w, r, err, msgBusNotFound)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordStatusSave(len(critical))
	}
	resp := statusResponse{Critical: critical}
	if resp.Critical == nil {
		resp.Critical = []model.DocumentType{}
	}
	if len(critical) > 0 {
		resp.PrintURL = printURL(bus.PPU, "faltantes")
	}
	respondJSON(w, http.StatusOK, resp)
}

// parseStates validates a raw estados object. The message is empty when the
// mapping is complete and valid.
func parseStates(raw map[string]string) (model.StateMap, string) {
	states := make(model.StateMap, len(raw))
	for k, v := range raw {
		tipo, err := model.ParseDocumentType(k)
		if err != nil {
			return nil, fmt.Sprintf("Tipo de documento desconocido: %s.", k)
		}
		estado, err := model.ParseDocumentState(v)
		if err != nil {
			return nil, fmt.Sprintf("Estado inválido para %s: %s.", tipo.DisplayName(), v)
		}
		states[tipo] = estado
	}
	for _, tipo := range model.DocumentTypes {
		if _, ok := states[tipo]; !ok {
			return nil, fmt.Sprintf("Falta el estado de %s.", tipo.DisplayName())
		}
	}
	return states, ""
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	tipo, ok := queryType(w, r)
	if !ok {
		return
	}
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	files, err := s.svc.Files.List(r.Context(), bus.ID, tipo)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"archivos": files})
}

func (s *Server) handlePrintTargets(w http.ResponseWriter, r *http.Request) {
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	targets, err := s.svc.Files.PrintTargets(r.Context(), *bus)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"objetivos": targets})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	tipo, ok := queryType(w, r)
	if !ok {
		return
	}
	bus, ok := s.lookupBus(w, r)
	if !ok {
		return
	}
	rows, err := s.svc.Analyses.List(r.Context(), bus.ID, tipo)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"analisis": rows})
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err, msgFileNotFound)
		return
	}
	link, signed := s.svc.Files.URL(r.Context(), *rec)
	respondJSON(w, http.StatusOK, map[string]any{
		"url":      link,
		"firmada":  signed,
		"archivo":  rec,
		"nombre":   rec.FileName(),
		"imprimir": "/print/file/" + url.PathEscape(rec.ID),
	})
}

// queryType reads the required tipo query parameter.
func queryType(w http.ResponseWriter, r *http.Request) (model.DocumentType, bool) {
	raw := r.URL.Query().Get("tipo")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "Debes indicar el tipo de documento.")
		return "", false
	}
	tipo, err := model.ParseDocumentType(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Tipo de documento desconocido: %s.", raw))
		return "", false
	}
	return tipo, true
}

func printURL(ppu string, modo string) string {
	q := url.Values{}
	q.Set("modo", modo)
	return "/print/" + url.PathEscape(ppu) + "?" + q.Encode()
}
