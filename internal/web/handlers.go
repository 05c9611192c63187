package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/nipa/internal/pipeline"
	"github.com/JonMunkholm/nipa/internal/publish"
	"github.com/go-chi/chi/v5"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status     string    `json:"status"`
	Running    bool      `json:"running"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	Time       time.Time `json:"time"`
}

// triggerResponse is the body of a 202 from POST /api/runs.
type triggerResponse struct {
	RunID  string   `json:"run_id"`
	Status string   `json:"status"`
	Phases []string `json:"phases"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Running: s.pipeline.Running(),
		Time:    time.Now().UTC(),
	}
	if latest := s.pipeline.Latest(); latest != nil {
		resp.LastRunID = latest.RunID
		resp.LastStatus = latest.Status
	}
	writeJSON(w, resp)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	latest := s.pipeline.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no runs yet")
		return
	}
	writeJSON(w, latest)
}

// handleTriggerRun starts a run in the background.
// Query parameter phase selects ingest, transform or all (default).
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	phases, ok := parsePhases(r.URL.Query().Get("phase"))
	if !ok {
		writeError(w, http.StatusBadRequest, "phase must be one of: all, ingest, transform")
		return
	}

	runID, err := s.pipeline.Start(runContext(s.runCtx, r), phases)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.respondError(w, r, err, http.StatusConflict)
		return
	case errors.Is(err, pipeline.ErrIngestUnavailable):
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	case err != nil:
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/api/runs/latest")
	resp := triggerResponse{RunID: runID, Status: pipeline.StatusRunning}
	if latest := s.pipeline.Latest(); latest != nil && latest.RunID == runID {
		resp.Phases = latest.Phases
	}
	writeJSONStatus(w, http.StatusAccepted, resp)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := s.catalog.ListDatasets(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"count":    len(infos),
		"datasets": infos,
	})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	info, err := s.catalog.GetDataset(r.Context(), chi.URLParam(r, "datasetID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, publish.ErrDatasetNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, info)
}

func parsePhases(v string) (pipeline.Phases, bool) {
	switch v {
	case "", "all":
		return pipeline.AllPhases, true
	case "ingest":
		return pipeline.Phases{Ingest: true}, true
	case "transform":
		return pipeline.Phases{Transform: true}, true
	default:
		return pipeline.Phases{}, false
	}
}
