package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/colebrumley/meowd/internal/meow"
	"github.com/colebrumley/meowd/internal/security"
	"github.com/colebrumley/meowd/internal/state"
)

// RuleLister is satisfied by monitor.Monitor; kept as an interface so
// tests can substitute a fake rule set.
type RuleLister interface {
	GetRules() map[string]*meow.Rule
}

// ruleView is the JSON-facing projection of a meow.Rule — deliberately
// thin, since the API is a read-only operator surface, not a control
// plane for pattern/recipe bodies.
type ruleView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Recipe  string `json:"recipe"`
}

// Server holds the dependencies backing the API's handlers.
type Server struct {
	rules RuleLister
	index *state.DB
}

// NewServer constructs a Server over the given rule source and job
// history index.
func NewServer(rules RuleLister, index *state.DB) *Server {
	return &Server{rules: rules, index: index}
}

// handleHealthz responds to GET /healthz with no authentication required.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRules responds to GET /rules with the currently loaded rule
// set, derived live from the monitor's patterns and recipes.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := s.rules.GetRules()
	out := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleView{
			ID:      rule.ID,
			Name:    rule.Name,
			Pattern: rule.Pattern.Name,
			Recipe:  rule.Recipe.Name,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListJobs responds to GET /jobs.
//
// Supported query parameters:
//
//	rule   – exact rule name filter (optional)
//	status – one of creating, queued, running, done, failed, skipped (optional)
//	limit  – maximum number of results (default 100, max 1000)
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if limitStr := q.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "'limit' must be a positive integer")
			return
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}

	records, err := s.index.GetHistory(q.Get("rule"), q.Get("status"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query job history")
		return
	}
	if records == nil {
		records = []state.JobRecord{}
	}
	for i := range records {
		records[i].Error = security.ScrubOutput(records[i].Error)
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetJob responds to GET /jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	record, err := s.index.GetJob(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query job")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	record.Error = security.ScrubOutput(record.Error)
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
