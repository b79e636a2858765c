package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"amora/server/internal/models"
	"amora/server/internal/storage"
)

// UserStore is what the auth layer needs from persistence.
type UserStore interface {
	User(ctx context.Context, id string) (*models.User, error)
	UserByDeviceID(ctx context.Context, deviceID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	SetPlan(ctx context.Context, userID string, plan models.PlanTier) error
	TouchUser(ctx context.Context, userID string) error
}

type contextKey string

const userContextKey contextKey = "user"

const tokenTTL = 30 * 24 * time.Hour

type GuestAuthRequest struct {
	DeviceID string `json:"device_id"`
	Language string `json:"language,omitempty"`
}

type GuestAuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// GuestAuth signs a guest in by device id, creating the user on first
// contact. No password: the device id is the identity, like any app that
// defers registration.
func (h *Handlers) GuestAuth(w http.ResponseWriter, r *http.Request) {
	var req GuestAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "device_id is required")
		return
	}

	user, err := h.users.UserByDeviceID(r.Context(), req.DeviceID)
	if errors.Is(err, storage.ErrUserNotFound) {
		user = &models.User{
			DeviceID: req.DeviceID,
			Plan:     models.PlanFree,
			Language: models.LangEN,
		}
		if models.ValidLanguage(models.Language(req.Language)) {
			user.Language = models.Language(req.Language)
		}
		err = h.users.CreateUser(r.Context(), user)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("guest auth failed")
		respondError(w, http.StatusInternalServerError, "internal", "could not sign in")
		return
	}

	token, err := h.signToken(user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("token signing failed")
		respondError(w, http.StatusInternalServerError, "internal", "could not sign in")
		return
	}

	respondJSON(w, http.StatusOK, GuestAuthResponse{Token: token, User: user})
}

func (h *Handlers) signToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

// requireUser parses the Bearer token, loads the user, and stores it on the
// request context. The plan is read fresh from the store on every request so
// a billing change takes effect immediately.
func (h *Handlers) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		user, err := h.users.User(r.Context(), claims.Subject)
		if errors.Is(err, storage.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal", "could not load user")
			return
		}

		_ = h.users.TouchUser(r.Context(), user.ID)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func userFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}
