package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/WvvvWv/csvsplit/internal/core"
	"github.com/WvvvWv/csvsplit/internal/history"
	"github.com/WvvvWv/csvsplit/internal/logging"
)

// maxRequestBody bounds the JSON body of a split request.
const maxRequestBody = 64 * 1024

// handleSplit runs one split synchronously. Failed splits still answer 200
// with success=false; only an undecodable body is a 400.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req core.SplitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		msg := fmt.Sprintf("invalid request body: %v", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "invalid request body: too large"
		}
		logger.Warn("split request rejected", "error", err)
		writeJSONStatus(w, http.StatusBadRequest, core.SplitResult{Success: false, Error: &msg})
		return
	}

	result := s.service.Split(r.Context(), req)
	if !result.Success {
		code := core.MapError(errors.New(result.ErrorMessage())).Code
		w.Header().Set("X-Error-Code", code)
		logger.Info("split finished with error", "run_id", result.RunID, "code", code)
	}
	writeJSON(w, r, result)
}

// handleRuns lists recent runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", history.DefaultLimit)

	runs, err := s.service.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleHealth reports liveness and the split limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"status": "ok",
		"splits": s.service.LimiterStatus(),
	})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
