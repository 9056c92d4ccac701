package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/affiliatehq/reporting-service/internal/aggregate"
	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/impact"
	"github.com/affiliatehq/reporting-service/internal/models"
	"github.com/affiliatehq/reporting-service/internal/pipeline"
	"github.com/affiliatehq/reporting-service/internal/rules"
)

// Server exposes the run registry, rule management and report catalog over
// HTTP. All user-facing rendering happens elsewhere; this surface hands
// over records and summaries as JSON.
type Server struct {
	config    config.ServerConfig
	client    *impact.Client
	pipe      *pipeline.Pipeline
	registry  *pipeline.Registry
	ruleStore *rules.Store
	reportIDs []string
	server    *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, client *impact.Client, pipe *pipeline.Pipeline, registry *pipeline.Registry, ruleStore *rules.Store, reportIDs []string) *Server {
	s := &Server{
		config:    cfg,
		client:    client,
		pipe:      pipe,
		registry:  registry,
		ruleStore: ruleStore,
		reportIDs: reportIDs,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/reports", s.handleReports).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleTriggerRun).Methods(http.MethodPost)
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	r.HandleFunc("/teams", s.handleAddTeam).Methods(http.MethodPost)
	r.HandleFunc("/teams/{name}/rules", s.handleAddRule).Methods(http.MethodPost)
	r.HandleFunc("/mappings", s.handleAddMapping).Methods(http.MethodPost)
	r.HandleFunc("/assignments", s.handleListAssignments).Methods(http.MethodGet)
	r.HandleFunc("/assignments/{key}", s.handleSetAssignment).Methods(http.MethodPut)
	r.HandleFunc("/assignments/{key}", s.handleRemoveAssignment).Methods(http.MethodDelete)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReports lists the accessible reports on the remote API
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.client.ListReports(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list reports: %v", err), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// handleListRuns returns the retained batch run IDs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": s.registry.List(),
	})
}

// handleTriggerRun kicks off a batch in the background. Results land in
// the registry once the batch finishes.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	go func() {
		batch := s.pipe.RunBatch(context.Background(), s.reportIDs)
		s.registry.Record(batch)
		log.Printf("triggered batch %s finished: %d succeeded, %d failed",
			batch.RunID, len(batch.Succeeded), len(batch.Failed))
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleGetRun returns one batch result by run ID
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	batch, ok := s.registry.Get(runID)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

// handleSummary aggregates the latest batch into team and team/SKU rollups
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.registry.Latest()
	if !ok {
		http.Error(w, "No batch has run yet", http.StatusNotFound)
		return
	}

	var records []models.Record
	for _, run := range batch.Succeeded {
		records = append(records, run.Records...)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  batch.RunID,
		"summary": aggregate.Aggregate(records),
	})
}

// handleListTeams returns active teams with their metadata
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	names := s.ruleStore.GetActiveTeams()
	teams := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		meta, _ := s.ruleStore.GetTeamMeta(name)
		teams = append(teams, map[string]interface{}{
			"name":           name,
			"description":    meta.Description,
			"revenue_target": meta.RevenueTarget,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// handleAddTeam registers a team
func (s *Server) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		RevenueTarget float64 `json:"revenue_target"`
		Active        *bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "Invalid team payload", http.StatusBadRequest)
		return
	}

	active := true
	if body.Active != nil {
		active = *body.Active
	}

	err := s.ruleStore.AddTeam(r.Context(), body.Name, rules.TeamMeta{
		Description:   body.Description,
		RevenueTarget: body.RevenueTarget,
		Active:        active,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to add team: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"team": body.Name})
}

// handleAddRule appends patterns to one team's rule table
func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	team := mux.Vars(r)["name"]

	var body struct {
		RuleType string   `json:"rule_type"`
		Patterns []string `json:"patterns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Patterns) == 0 {
		http.Error(w, "Invalid rule payload", http.StatusBadRequest)
		return
	}

	if err := s.ruleStore.AddPatternRule(r.Context(), team, rules.RuleType(body.RuleType), body.Patterns); err != nil {
		http.Error(w, fmt.Sprintf("Failed to add rule: %v", err), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"team": team, "rule_type": body.RuleType})
}

// handleAddMapping registers an exact identifier → team mapping
func (s *Server) handleAddMapping(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Team       string `json:"team"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identifier == "" || body.Team == "" {
		http.Error(w, "Invalid mapping payload", http.StatusBadRequest)
		return
	}

	if err := s.ruleStore.AddManualMapping(r.Context(), body.Identifier, body.Team); err != nil {
		http.Error(w, fmt.Sprintf("Failed to add mapping: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"identifier": body.Identifier, "team": body.Team})
}

// handleListAssignments returns the manual row-override table
func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": s.ruleStore.GetAllManualRowAssignments(),
	})
}

// handleSetAssignment pins a row-identity key to a team
func (s *Server) handleSetAssignment(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var body struct {
		Team   string `json:"team"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Team == "" {
		http.Error(w, "Invalid assignment payload", http.StatusBadRequest)
		return
	}

	if err := s.ruleStore.SetManualRowAssignment(r.Context(), key, body.Team, body.Reason); err != nil {
		http.Error(w, fmt.Sprintf("Failed to set assignment: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "team": body.Team})
}

// handleRemoveAssignment deletes one manual row override
func (s *Server) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := s.ruleStore.RemoveManualRowAssignment(r.Context(), key); err != nil {
		http.Error(w, fmt.Sprintf("Failed to remove assignment: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": "removed"})
}
