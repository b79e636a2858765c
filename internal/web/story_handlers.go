package web

import (
	"net/http"

	"amora/server/internal/models"
)

type StartStoryRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type SubmitChoiceRequest struct {
	Choice string `json:"choice"`
}

// GetScenarios lists the fantasy scenario catalog.
func (h *Handlers) GetScenarios(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.Scenarios)
}

// StartStory opens a new story session for the authenticated user.
func (h *Handlers) StartStory(w http.ResponseWriter, r *http.Request) {
	var req StartStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ScenarioID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "scenario_id is required")
		return
	}

	session, err := h.orch.StartScenario(r.Context(), userFrom(r), req.ScenarioID)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// SubmitChoice advances the active session with one of the offered choices.
func (h *Handlers) SubmitChoice(w http.ResponseWriter, r *http.Request) {
	var req SubmitChoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Choice == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "choice is required")
		return
	}

	session, err := h.orch.SubmitChoice(r.Context(), userFrom(r), req.Choice)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// ResetStory discards the active session. Safe to call with none active.
func (h *Handlers) ResetStory(w http.ResponseWriter, r *http.Request) {
	h.orch.ResetStory(userFrom(r))
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// GetStorySession returns the active session, or 404 when none exists.
func (h *Handlers) GetStorySession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.orch.StorySession(userFrom(r))
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "no active story session")
		return
	}
	respondJSON(w, http.StatusOK, session)
}
