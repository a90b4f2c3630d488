package handler

import (
	"errors"
	"net/http"

	"github.com/bambuco/moodle-auth-customized/internal/usecase"
)

type signupRequest struct {
	Username        string `json:"username"         validate:"omitempty,max=100"`
	Email           string `json:"email"            validate:"required,email,max=100"`
	Password        string `json:"password"         validate:"required,min=8,max=128"`
	Password2       string `json:"password2"        validate:"omitempty"`
	FirstName       string `json:"firstname"        validate:"required,max=100"`
	LastName        string `json:"lastname"         validate:"required,max=100"`
	City            string `json:"city"             validate:"omitempty,max=120"`
	Country         string `json:"country"          validate:"omitempty,len=2"`
	CaptchaResponse string `json:"captcha_response" validate:"omitempty"`
}

type signupResponse struct {
	Username string `json:"username"`
	Notice   string `json:"notice"`
}

// Signup handles self-registration. The account is created unconfirmed and a
// confirmation link is emailed.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	if !h.cfg.UsernameIsEmail && req.Username == "" {
		h.respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	if h.cfg.ConfirmPassword && req.Password != req.Password2 {
		h.respondError(w, http.StatusBadRequest, "the password confirmation does not match the password you entered")
		return
	}
	if h.cfg.RequireCountryAndCity && (req.Country == "" || req.City == "") {
		h.respondError(w, http.StatusBadRequest, "country and city are required")
		return
	}

	account, err := h.signup.Register(r.Context(), usecase.RegisterParams{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		City:            req.City,
		Country:         req.Country,
		CaptchaResponse: req.CaptchaResponse,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAccountExists):
			h.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, usecase.ErrCaptchaFailed):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrDeliveryFailure):
			h.respondError(w, http.StatusBadGateway, "the confirmation email could not be sent")
		default:
			h.logger.Error().Err(err).Msg("failed to register account")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, signupResponse{
		Username: account.Username,
		Notice:   "An email should have been sent to your address. It contains easy instructions to confirm your account.",
	})
}

// ConfirmSignup confirms a pending account from the emailed link.
func (h *AuthHandler) ConfirmSignup(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	secret := r.URL.Query().Get("secret")
	if username == "" || secret == "" {
		h.respondError(w, http.StatusBadRequest, "username and secret are required")
		return
	}

	account, err := h.signup.Confirm(r.Context(), username, secret)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidConfirmation):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to confirm account")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, signupResponse{
		Username: account.Username,
		Notice:   "Your account has been confirmed. You can now log in.",
	})
}

// SignupFields returns the ordered signup form descriptor.
func (h *AuthHandler) SignupFields(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.signup.Fields())
}
