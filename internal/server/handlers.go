package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second

	msgNoQuery = "No query provided"
)

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	TraceID   string           `json:"trace_id"`
	Query     string           `json:"query"`
	Result    []map[string]any `json:"result"`
	Columns   []string         `json:"columns"`
	RowCount  int              `json:"row_count"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Attempts  int              `json:"attempts"`
	Truncated bool             `json:"truncated"`
	Answer    string           `json:"answer,omitempty"`
}

type successBody struct {
	Status   string `json:"status"`
	Response any    `json:"response"`
}

type errorBody struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: msgNoQuery})
		return
	}

	out, err := s.cfg.Translator.Translate(r.Context(), req.Query)
	if err != nil {
		status, body := failureBody(err)
		writeJSON(w, status, body)
		return
	}

	resp := queryResponse{
		TraceID:   out.TraceID,
		Query:     out.Query,
		Attempts:  out.Attempts,
		Answer:    out.Answer,
		ElapsedMS: out.Elapsed.Milliseconds(),
		Result:    []map[string]any{},
		Columns:   []string{},
	}
	if out.Result != nil {
		if out.Result.Rows != nil {
			resp.Result = out.Result.Rows
		}
		if out.Result.Columns != nil {
			resp.Columns = out.Result.Columns
		}
		resp.RowCount = out.Result.RowCount
		resp.Truncated = out.Result.Truncated
	}
	writeJSON(w, http.StatusOK, successBody{Status: "success", Response: resp})
}

// failureBody maps a terminal error onto a status code: client errors are
// 400, store or oracle outages 503, everything else 500.
func failureBody(err error) (int, errorBody) {
	var f *core.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, errorBody{Status: "error", Error: err.Error()}
	}

	body := errorBody{
		Status:   "error",
		Error:    f.Error(),
		Kind:     string(f.Kind),
		Stage:    string(f.Stage),
		Reason:   string(f.Reason),
		Fragment: f.Fragment,
		Attempts: f.Attempts,
	}
	switch f.Kind {
	case core.KindInput:
		return http.StatusBadRequest, errorBody{Status: "error", Error: msgNoQuery}
	case core.KindStoreUnavailable, core.KindOracleUnavailable, core.KindCanceled:
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, body
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion uint64 `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.cfg.Schema != nil {
		if snap := s.cfg.Schema.Current(); snap != nil {
			resp.SchemaVersion = snap.Version
		}
	}
	if s.cfg.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.cfg.Store.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Schema.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Status: "error", Error: "schema not loaded"})
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graphschema.Format(snap)))
		return
	}
	writeJSON(w, http.StatusOK, successBody{Status: "success", Response: snap})
}

func (s *Server) handleSchemaRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cfg.Schema.Refresh(r.Context())
	if err != nil {
		s.logger.Warn("schema refresh failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, successBody{Status: "success", Response: snap})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
