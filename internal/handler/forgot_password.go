package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/bambuco/moodle-auth-customized/internal/usecase"
)

// anonCookie identifies an anonymous browser session, used solely to key the
// reset token staging slot across the redirect.
const anonCookie = "AUTHANONSESS"

type forgotPasswordRequest struct {
	Username string `json:"username" validate:"omitempty,max=100"`
	Email    string `json:"email"    validate:"omitempty,email,max=100"`
}

type resetResultResponse struct {
	Status      string `json:"status"`
	Notice      string `json:"notice"`
	RedirectURL string `json:"redirect_url"`
}

// RequestReset handles a new password reset request.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Identifiers disabled by site policy are treated as absent.
	if !h.cfg.ForgotByUsername {
		req.Username = ""
	}
	if !h.cfg.ForgotByEmail {
		req.Email = ""
	}

	result, err := h.resetRequests.ProcessRequest(r.Context(), req.Username, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRequest):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrDeliveryFailure):
			h.respondError(w, http.StatusBadGateway, "the confirmation email could not be sent")
		default:
			h.logger.Error().Err(err).Msg("failed to process password reset request")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, resetResultResponse{
		Status:      result.Status,
		Notice:      result.Notice,
		RedirectURL: result.RedirectURL,
	})
}

type forgotPasswordFormResponse struct {
	ByUsername bool `json:"by_username"`
	ByEmail    bool `json:"by_email"`
}

// ForgotPasswordEntry serves the entry point of the recovery flow. A request
// carrying a token in the URL is the user following the emailed link: the
// token is staged in a single-read slot keyed by an anonymous session cookie
// and the client is redirected to the reset endpoint without the token, so
// the token does not linger in browser history or referrer headers.
func (h *AuthHandler) ForgotPasswordEntry(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		h.respondJSON(w, http.StatusOK, forgotPasswordFormResponse{
			ByUsername: h.cfg.ForgotByUsername,
			ByEmail:    h.cfg.ForgotByEmail,
		})
		return
	}

	sessionID := h.anonSessionID(w, r)
	if err := h.stash.Put(r.Context(), sessionID, tok); err != nil {
		h.logger.Error().Err(err).Msg("failed to stage reset token")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	http.Redirect(w, r, h.cfg.AppURL+"/auth/reset-password", http.StatusSeeOther)
}

// anonSessionID returns the anonymous session ID from the request cookie,
// setting a fresh one when absent.
func (h *AuthHandler) anonSessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookie,
		Value:    id,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}
