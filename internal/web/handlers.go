package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"amora/server/internal/config"
	"amora/server/internal/engine"
	"amora/server/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type Handlers struct {
	orch          *engine.Orchestrator
	users         UserStore
	hub           *EventHub
	jwtSecret     string
	billingSecret string
	log           zerolog.Logger
}

func NewHandlers(cfg *config.Config, orch *engine.Orchestrator, users UserStore, hub *EventHub, log zerolog.Logger) *Handlers {
	return &Handlers{
		orch:          orch,
		users:         users,
		hub:           hub,
		jwtSecret:     cfg.Server.JWTSecret,
		billingSecret: cfg.Billing.WebhookSecret,
		log:           log,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: &errorBody{Code: code, Message: message}})
}

// respondEngineError maps engine errors to HTTP. Plan limit denials carry
// their machine-readable reason so the client can render the right upsell.
func (h *Handlers) respondEngineError(w http.ResponseWriter, err error) {
	if ple, ok := engine.AsPlanLimit(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(envelope{Error: &errorBody{
			Code:    "plan_limit",
			Message: ple.Error(),
			Reason:  string(ple.Reason),
		}})
		return
	}

	switch {
	case errors.Is(err, engine.ErrInvalidAction):
		respondError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, engine.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, engine.ErrAlreadyStarted), errors.Is(err, engine.ErrSessionTerminal):
		respondError(w, http.StatusConflict, "session_conflict", err.Error())
	case errors.Is(err, engine.ErrRequestInFlight):
		respondError(w, http.StatusTooManyRequests, "request_in_flight", err.Error())
	case errors.Is(err, engine.ErrGenerationFailed):
		respondError(w, http.StatusBadGateway, "generation_failed", "the companion could not reply, try again")
	case errors.Is(err, storage.ErrCharacterNotFound), errors.Is(err, storage.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "amora",
		"clients": h.hub.ClientCount(),
	})
}

// GetCharacters lists the companion catalog. Public: the lock state is a
// client rendering concern, selection is what the gate protects.
func (h *Handlers) GetCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.orch.Characters(r.Context())
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, characters)
}

// GetUsage returns the user's counters and plan for the paywall UI.
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	usage, err := h.orch.Usage(r.Context(), user)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plan":  user.Plan,
		"usage": usage,
	})
}

// EventStream upgrades to WebSocket and subscribes the connection to the
// authenticated user's events.
func (h *Handlers) EventStream(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:     generateClientID(),
		UserID: user.ID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    h.hub,
	}
	h.hub.register <- client

	welcome, _ := json.Marshal(map[string]interface{}{
		"type": "connected",
		"id":   client.ID,
		"time": time.Now().Unix(),
	})
	select {
	case client.Send <- welcome:
	default:
	}

	go client.readPump()
}

func generateClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func NewRouter(cfg *config.Config, orch *engine.Orchestrator, users UserStore, hub *EventHub, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			log.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	})
	r.Use(corsMiddleware)

	h := NewHandlers(cfg, orch, users, hub, log)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/guest", h.GuestAuth)
		r.Post("/billing/webhook", h.BillingWebhook)
		r.Get("/characters", h.GetCharacters)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)

			r.Get("/usage", h.GetUsage)
			r.Get("/events", h.EventStream)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/{character_id}/messages", h.SendMessage)
				r.Get("/{character_id}/messages", h.GetHistory)
				r.Delete("/{character_id}/messages", h.ClearHistory)
				r.Post("/{character_id}/select", h.SelectCharacter)
				r.Post("/{character_id}/photo", h.RequestPhoto)
			})

			r.Route("/story", func(r chi.Router) {
				r.Get("/scenarios", h.GetScenarios)
				r.Post("/start", h.StartStory)
				r.Post("/choice", h.SubmitChoice)
				r.Post("/reset", h.ResetStory)
				r.Get("/session", h.GetStorySession)
			})

			r.Post("/generate/messages", h.GenerateMessages)
			r.Post("/analyze", h.AnalyzeConversation)
			r.Post("/analyze/image", h.AnalyzeImage)
		})
	})

	return r
}
