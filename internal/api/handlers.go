package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/progress"
	"github.com/jmcadams/pulse/internal/registry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// listSessions handles GET /v1/sessions. It returns {"sessions": [...]}
// with each session's id and latest snapshot.
func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.List()
	out := make([]sessionDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toSessionDTO(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// createSession handles POST /v1/sessions and returns the new session id.
func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	entry, err := s.registry.Create()
	if err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": entry.ID})
}

// getSession handles GET /v1/sessions/{session_id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toSessionDTO(entry)})
}

// removeSession handles DELETE /v1/sessions/{session_id}. Removal disposes
// the session; any in-flight hold is canceled.
func (s *Server) removeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := s.registry.Remove(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("remove session failed", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to remove session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "removed"})
}

// getHistory handles GET /v1/sessions/{session_id}/history?limit=.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records := entry.History.Recent(limit)
	out := make([]historyDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, historyDTO{At: rec.At, Snapshot: toSnapshotDTO(rec.Snapshot)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

// startSession handles POST /v1/sessions/{session_id}/start. The body picks
// the mode; stepped mode requires a non-empty step list.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var err error
	switch strings.ToLower(req.Mode) {
	case "indeterminate":
		err = entry.Session.StartIndeterminate(req.Message)
	case "normal":
		err = entry.Session.StartNormal()
	case "stepped":
		steps := make([]progress.StepConfig, 0, len(req.Steps))
		for _, st := range req.Steps {
			steps = append(steps, progress.StepConfig{ID: st.ID, Name: st.Name, Tooltip: st.Tooltip})
		}
		err = entry.Session.StartStepped(steps)
	default:
		writeError(w, http.StatusBadRequest, "mode must be indeterminate, normal, or stepped")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toSessionDTO(entry)})
}

// completeSession handles POST /v1/sessions/{session_id}/complete.
func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := entry.Session.Complete(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toSessionDTO(entry)})
}

// injectEvent handles POST /v1/sessions/{session_id}/events: it publishes a
// task lifecycle event on the bus under the session's channel, exactly as an
// in-process pipeline would.
func (s *Server) injectEvent(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	evt := execution.Event{
		Channel:        entry.ID,
		Kind:           execution.Kind(strings.ToUpper(req.Kind)),
		TaskName:       req.Task,
		StepPercent:    req.StepPercent,
		OverallPercent: req.OverallPercent,
		Message:        req.Message,
	}
	if err := s.bus.Publish(evt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": entry.ID, "status": "accepted"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*registry.Entry, bool) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "registry not initialized")
		return nil, false
	}
	id := chi.URLParam(r, "session_id")
	entry, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return entry, true
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progress.ErrDisposed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, progress.ErrWrongMode):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, progress.ErrStepNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, progress.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type startRequest struct {
	Mode    string          `json:"mode"`
	Message string          `json:"message"`
	Steps   []stepConfigDTO `json:"steps"`
}

type eventRequest struct {
	Kind           string   `json:"kind"`
	Task           string   `json:"task"`
	StepPercent    *float64 `json:"step_percent"`
	OverallPercent *float64 `json:"overall_percent"`
	Message        string   `json:"message"`
}

type sessionDTO struct {
	ID       string      `json:"id"`
	Snapshot snapshotDTO `json:"snapshot"`
}

type snapshotDTO struct {
	Visible       bool            `json:"visible"`
	Indeterminate bool            `json:"indeterminate"`
	Message       string          `json:"message"`
	Progress      float64         `json:"progress"`
	Steps         []stepConfigDTO `json:"steps,omitempty"`
	StepUpdates   []stepStateDTO  `json:"step_updates,omitempty"`
}

type stepConfigDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

type stepStateDTO struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

type historyDTO struct {
	At       time.Time   `json:"at"`
	Snapshot snapshotDTO `json:"snapshot"`
}

func toSessionDTO(entry *registry.Entry) sessionDTO {
	return sessionDTO{
		ID:       entry.ID,
		Snapshot: toSnapshotDTO(entry.Session.Current()),
	}
}

func toSnapshotDTO(snap progress.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		Visible:       snap.Visible,
		Indeterminate: snap.Indeterminate,
		Message:       snap.Message,
		Progress:      snap.Progress,
	}
	for _, step := range snap.Steps {
		dto.Steps = append(dto.Steps, stepConfigDTO{ID: step.ID, Name: step.Name, Tooltip: step.Tooltip})
	}
	for _, st := range snap.StepUpdates {
		dto.StepUpdates = append(dto.StepUpdates, stepStateDTO{ID: st.ID, Progress: st.Progress, Status: string(st.Status)})
	}
	return dto
}
