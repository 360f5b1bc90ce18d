package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

type createKeyDTO struct {
	Name            string     `json:"name" validate:"required,max=128"`
	Scopes          []string   `json:"scopes" validate:"max=32,dive,max=128"`
	RateLimitPerMin int        `json:"rate_limit_per_min" validate:"min=0,max=100000"`
	Environment     string     `json:"environment" validate:"required,oneof=live test"`
	HMAC            bool       `json:"hmac"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

type keyView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"key_prefix"`
	Scopes          []string   `json:"scopes"`
	RateLimitPerMin int        `json:"rate_limit_per_min"`
	Environment     string     `json:"environment"`
	HMAC            bool       `json:"hmac"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// createdKeyView additionally carries the one-time plaintext material.
type createdKeyView struct {
	keyView
	Key    string `json:"key"`
	Secret string `json:"secret,omitempty"`
}

func viewOf(key *domain.APIKey) keyView {
	return keyView{
		ID:              key.ID,
		Name:            key.Name,
		KeyPrefix:       key.KeyPrefix,
		Scopes:          key.ScopeList(),
		RateLimitPerMin: key.RateLimitPerMin,
		Environment:     key.Environment,
		HMAC:            key.IsHMAC(),
		ExpiresAt:       key.ExpiresAt,
		RevokedAt:       key.RevokedAt,
		LastUsedAt:      key.LastUsedAt,
		CreatedAt:       key.CreatedAt,
	}
}

type APIKeyHandler struct {
	keys     *service.APIKeyService
	validate *validator.Validate
}

func NewAPIKeyHandler(keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, validate: validator.New()}
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, auth.CodeAuthError, "missing credentials", nil)
		return
	}

	var req createKeyDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "bad_request", "malformed request body", nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "bad_request", "invalid request", validationDetails(err))
		return
	}

	created, err := h.keys.Create(r.Context(), service.CreateKeyInput{
		TenantID:        ac.TenantID,
		Name:            req.Name,
		Scopes:          req.Scopes,
		RateLimitPerMin: req.RateLimitPerMin,
		Environment:     req.Environment,
		HMAC:            req.HMAC,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal", "could not create key", nil)
		return
	}

	response.JSON(w, r, http.StatusCreated, createdKeyView{
		keyView: viewOf(created.Key),
		Key:     created.RawKey,
		Secret:  created.RawSecret,
	})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, auth.CodeAuthError, "missing credentials", nil)
		return
	}

	keys, err := h.keys.List(r.Context(), ac.TenantID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "internal", "could not list keys", nil)
		return
	}
	views := make([]keyView, len(keys))
	for i := range keys {
		views[i] = viewOf(&keys[i])
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, auth.CodeAuthError, "missing credentials", nil)
		return
	}

	keyID := chi.URLParam(r, "id")
	err := h.keys.Revoke(r.Context(), ac.TenantID, keyID)
	switch {
	case errors.Is(err, service.ErrKeyNotFound):
		response.Error(w, r, http.StatusNotFound, "not_found", "key not found", nil)
	case errors.Is(err, service.ErrKeyAlreadyRevoked):
		response.Error(w, r, http.StatusConflict, "conflict", "key already revoked", nil)
	case err != nil:
		response.Error(w, r, http.StatusInternalServerError, "internal", "could not revoke key", nil)
	default:
		response.JSON(w, r, http.StatusOK, map[string]string{"id": keyID, "status": "revoked"})
	}
}
