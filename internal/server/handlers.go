package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/leapstack-labs/pushset/pkg/pushschema"
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

type errorResponse struct {
	Error string `json:"error"`
}

type checkResponse struct {
	Compatible bool `json:"compatible"`
	pushschema.CheckResult
}

type runResponse struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"`
	DatasetID   string     `json:"dataset_id,omitempty"`
	DatasetName string     `json:"dataset_name,omitempty"`
	Status      string     `json:"status"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeModel reads a .bim document from the request body.
func (s *Server) decodeModel(w http.ResponseWriter, r *http.Request) (*tabular.Database, bool) {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	db, err := tabular.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return db, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	db, ok := s.decodeModel(w, r)
	if !ok {
		return
	}
	result := pushschema.Check(db.Model)
	writeJSON(w, http.StatusOK, checkResponse{Compatible: result.Compatible(), CheckResult: result})
}

// handleGenerate responds with the reduced document. Removal counts are
// reported in X-Removed-* headers.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	db, ok := s.decodeModel(w, r)
	if !ok {
		return
	}

	report, err := pushschema.Reduce(db.Model)
	if err != nil {
		var typeErr *pushschema.UnsupportedDataTypeError
		if errors.As(err, &typeErr) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := tabular.Encode(&buf, db); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Removed-Measures", strconv.Itoa(len(report.RemovedMeasures)))
	w.Header().Set("X-Removed-Relationships", strconv.Itoa(len(report.RemovedRelationships)))
	w.Header().Set("X-Removed-Tables", strconv.Itoa(len(report.RemovedTables)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to list runs"))
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:          run.ID,
			Operation:   string(run.Operation),
			DatasetID:   run.DatasetID,
			DatasetName: run.DatasetName,
			Status:      string(run.Status),
			Rows:        run.Rows,
			Error:       run.Error,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
