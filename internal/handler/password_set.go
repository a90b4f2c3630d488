package handler

import (
	"errors"
	"net/http"

	"github.com/bambuco/moodle-auth-customized/internal/usecase"
)

type resetFormResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type rejectionResponse struct {
	Status      string `json:"status"`
	Notice      string `json:"notice,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// PresentResetForm takes the staged token, validates it and returns the
// password form descriptor. The slot is read-once: a refresh of this page
// without a new emailed link lands back on the request form.
func (h *AuthHandler) PresentResetForm(w http.ResponseWriter, r *http.Request) {
	sessionID := h.anonSessionID(w, r)

	tok, ok, err := h.stash.Take(r.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read staged reset token")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if !ok {
		http.Redirect(w, r, h.cfg.AppURL+"/auth/forgot-password", http.StatusSeeOther)
		return
	}

	check, err := h.passwordSet.ValidateToken(r.Context(), tok)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to validate reset token")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if !check.Valid() {
		h.respondRejection(w, check)
		return
	}

	h.respondJSON(w, http.StatusOK, resetFormResponse{
		Username: check.Account.Username,
		Token:    tok,
	})
}

type commitResetRequest struct {
	Token     string `json:"token"     validate:"required,alphanum,len=32"`
	Password  string `json:"password"  validate:"required,min=8,max=128"`
	Password2 string `json:"password2" validate:"required"`
}

type commitResultResponse struct {
	Status       string `json:"status"`
	Notice       string `json:"notice"`
	RedirectURL  string `json:"redirect_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CommitReset redeems a reset token and sets the new password.
func (h *AuthHandler) CommitReset(w http.ResponseWriter, r *http.Request) {
	var req commitResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Password != req.Password2 {
		h.respondError(w, http.StatusBadRequest, "the password confirmation does not match the password you entered")
		return
	}

	check, result, err := h.passwordSet.Commit(r.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrCredentialUpdateFailed):
			// The token is consumed; only a brand-new request can help.
			h.respondError(w, http.StatusInternalServerError,
				"your password could not be updated, please make a new password reset request")
		default:
			h.logger.Error().Err(err).Msg("failed to commit password reset")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}
	if result == nil {
		h.respondRejection(w, check)
		return
	}

	h.respondJSON(w, http.StatusOK, commitResultResponse{
		Status:       "passwordset",
		Notice:       result.Notice,
		RedirectURL:  result.RedirectURL,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

func (h *AuthHandler) respondRejection(w http.ResponseWriter, check *usecase.TokenCheck) {
	forgotURL := h.cfg.AppURL + "/auth/forgot-password"

	switch check.Rejection {
	case usecase.RejectionNoRecord:
		h.respondJSON(w, http.StatusOK, rejectionResponse{
			Status:      "noresetrecord",
			Notice:      check.Notice,
			RedirectURL: forgotURL,
		})
	case usecase.RejectionExpired:
		h.respondJSON(w, http.StatusOK, rejectionResponse{
			Status:      "resetrecordexpired",
			Notice:      check.Notice,
			RedirectURL: forgotURL,
		})
	case usecase.RejectionAccountLocked:
		h.respondError(w, http.StatusForbidden, "this account cannot log in")
	case usecase.RejectionNotAllowed:
		h.respondError(w, http.StatusForbidden, "the guest account password cannot be reset")
	default:
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
	}
}
