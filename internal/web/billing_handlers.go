package web

import (
	"crypto/hmac"
	"net/http"

	"amora/server/internal/models"
)

type BillingWebhookRequest struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// BillingWebhook applies plan tier changes from the payment provider. The
// tier is never cached, so the change is live on the user's next request.
func (h *Handlers) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billingSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if !hmac.Equal([]byte(got), []byte(h.billingSecret)) {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
			return
		}
	}

	var req BillingWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Event != "plan_tier_changed" {
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown event: "+req.Event)
		return
	}

	plan := models.PlanTier(req.Plan)
	if plan != models.PlanFree && plan != models.PlanPremium {
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown plan: "+req.Plan)
		return
	}

	if err := h.users.SetPlan(r.Context(), req.UserID, plan); err != nil {
		h.respondEngineError(w, err)
		return
	}

	h.hub.Publish(req.UserID, "plan_changed", map[string]string{"plan": req.Plan})
	h.log.Info().Str("user_id", req.UserID).Str("plan", req.Plan).Msg("plan tier changed")

	respondJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}
