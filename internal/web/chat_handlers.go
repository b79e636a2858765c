package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"amora/server/internal/models"
)

type SendMessageRequest struct {
	Text      string `json:"text"`
	Tone      string `json:"tone,omitempty"`
	Intensity string `json:"intensity,omitempty"`
	Language  string `json:"language,omitempty"`
	UseSlang  bool   `json:"use_slang,omitempty"`
}

// persona assembles the request's persona settings, falling back to the
// user's language and the defaults.
func (req *SendMessageRequest) persona(user *models.User) (models.Persona, bool) {
	p := models.DefaultPersona
	if models.ValidLanguage(user.Language) {
		p.Language = user.Language
	}

	if req.Tone != "" {
		if !models.ValidTone(models.Tone(req.Tone)) {
			return p, false
		}
		p.Tone = models.Tone(req.Tone)
	}
	if req.Intensity != "" {
		if !models.ValidIntensity(models.Intensity(req.Intensity)) {
			return p, false
		}
		p.Intensity = models.Intensity(req.Intensity)
	}
	if req.Language != "" {
		if !models.ValidLanguage(models.Language(req.Language)) {
			return p, false
		}
		p.Language = models.Language(req.Language)
	}
	p.UseSlang = req.UseSlang
	return p, true
}

// SendMessage runs one chat turn with a character.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	user := userFrom(r)
	persona, ok := req.persona(user)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid persona settings")
		return
	}

	msg, err := h.orch.SendChatMessage(r.Context(), user, characterID, persona, req.Text)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// GetHistory returns the conversation's messages, oldest first.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.orch.ChatHistory(r.Context(), userFrom(r), characterID, limit)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// ClearHistory wipes the conversation with a character.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")

	if err := h.orch.ClearHistory(r.Context(), userFrom(r), characterID); err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// SelectCharacter gates a character pick and returns the conversation.
func (h *Handlers) SelectCharacter(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")

	conv, err := h.orch.SelectCharacter(r.Context(), userFrom(r), characterID)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// RequestPhoto asks the character for a photo. Premium-only.
func (h *Handlers) RequestPhoto(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")

	description, err := h.orch.RequestPhoto(r.Context(), userFrom(r), characterID)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"description": description})
}

type GenerateMessagesRequest struct {
	Situation string `json:"situation"`
}

// GenerateMessages produces ready-to-send message options for a situation.
func (h *Handlers) GenerateMessages(w http.ResponseWriter, r *http.Request) {
	var req GenerateMessagesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Situation == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "situation is required")
		return
	}

	messages, err := h.orch.GenerateMessages(r.Context(), userFrom(r), req.Situation)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"messages": messages})
}

type AnalyzeRequest struct {
	Type     string   `json:"type"`
	Messages []string `json:"messages"`
}

// AnalyzeConversation runs a sentiment/suggestions/summary analysis over
// pasted conversation text.
func (h *Handlers) AnalyzeConversation(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "messages are required")
		return
	}

	analysis, err := h.orch.AnalyzeConversation(r.Context(), userFrom(r), req.Type, req.Messages)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

type AnalyzeImageRequest struct {
	ImageURL  string `json:"image_url"`
	Tone      string `json:"tone,omitempty"`
	Intensity string `json:"intensity,omitempty"`
}

// AnalyzeImage runs a vision analysis over an uploaded image, styled by the
// requested tone and intensity.
func (h *Handlers) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeImageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "image_url is required")
		return
	}

	user := userFrom(r)
	persona, ok := (&SendMessageRequest{Tone: req.Tone, Intensity: req.Intensity}).persona(user)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid persona settings")
		return
	}

	analysis, err := h.orch.AnalyzeImage(r.Context(), user, persona, req.ImageURL)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}
