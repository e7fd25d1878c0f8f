package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/busdocs/internal/compliance"
	"github.com/dharsanguruparan/busdocs/internal/model"
	"github.com/dharsanguruparan/busdocs/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// anyState is the fleet filter value meaning "every state".
const anyState = "TODOS"

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := compliance.Criteria{PPU: q.Get("ppu"), Numero: q.Get("numero")}
	if raw := strings.TrimSpace(q.Get("estado")); raw != "" && !strings.EqualFold(raw, anyState) {
		estado, err := model.ParseDocumentState(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Estado desconocido: "+raw+".")
			return
		}
		criteria.Estado = estado
	}
	entries, err := s.svc.Reports.Fleet(r.Context(), criteria)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"buses": entries})
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	onlyIncomplete, ok := queryBool(w, r, "solo_incompletos")
	if !ok {
		return
	}
	rep, err := s.svc.Reports.Completeness(r.Context(), onlyIncomplete)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) handleCompletenessXLSX(w http.ResponseWriter, r *http.Request) {
	onlyIncomplete, ok := queryBool(w, r, "solo_incompletos")
	if !ok {
		return
	}
	rep, err := s.svc.Reports.Completeness(r.Context(), onlyIncomplete)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCompletenessXLSX(&buf, rep); err != nil {
		s.fail(w, r, err, "")
		return
	}
	name := "completitud-" + s.now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// queryBool reads an optional boolean query parameter, false when absent.
func queryBool(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Valor inválido para "+key+".")
		return false, false
	}
	return v, true
}
