// Package handler exposes the self-registration and password recovery flows
// over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/stash"
	"github.com/bambuco/moodle-auth-customized/internal/usecase"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	resetRequests usecase.ResetRequestUsecase
	passwordSet   usecase.PasswordSetUsecase
	signup        usecase.SignupUsecase
	stash         stash.Stash
	validate      *validator.Validate
	logger        *zerolog.Logger
	cfg           *config.Config
}

// NewAuthHandler creates the HTTP handler for the auth endpoints.
func NewAuthHandler(
	resetRequests usecase.ResetRequestUsecase,
	passwordSet usecase.PasswordSetUsecase,
	signup usecase.SignupUsecase,
	tokenStash stash.Stash,
	logger *zerolog.Logger,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		resetRequests: resetRequests,
		passwordSet:   passwordSet,
		signup:        signup,
		stash:         tokenStash,
		validate:      validator.New(),
		logger:        logger,
		cfg:           cfg,
	}
}

// Routes mounts the auth endpoints on a chi router.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/forgot-password", h.ForgotPasswordEntry)
	r.Post("/forgot-password", h.RequestReset)
	r.Get("/reset-password", h.PresentResetForm)
	r.Post("/reset-password", h.CommitReset)
	r.Post("/signup", h.Signup)
	r.Get("/signup/confirm", h.ConfirmSignup)
	r.Get("/signup/fields", h.SignupFields)

	return r
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, errorResponse{Error: msg})
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}
