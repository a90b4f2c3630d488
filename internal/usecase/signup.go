package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/bambuco/moodle-auth-customized/internal/authmethod"
	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/mailer"
	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
	"github.com/bambuco/moodle-auth-customized/internal/token"
)

var (
	// ErrAccountExists is returned when the requested username is taken.
	ErrAccountExists = errors.New("an account with this username already exists")

	// ErrCaptchaFailed is returned when the CAPTCHA response did not verify.
	ErrCaptchaFailed = errors.New("captcha verification failed")

	// ErrInvalidConfirmation is returned when a confirmation secret does not
	// match the account's pending one.
	ErrInvalidConfirmation = errors.New("invalid confirmation secret")
)

// RegisterParams defines the parameters for self-registration.
type RegisterParams struct {
	Username        string
	Email           string
	Password        string
	FirstName       string
	LastName        string
	City            string
	Country         string
	CaptchaResponse string
}

// SignupField describes one field of the signup form, in display order.
type SignupField struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// SignupUsecase creates accounts pending email confirmation.
type SignupUsecase interface {
	// Register creates an unconfirmed account and sends the confirmation
	// email.
	Register(ctx context.Context, params RegisterParams) (*model.Account, error)

	// Confirm flips the account to confirmed when the secret matches. It is
	// idempotent for already confirmed accounts.
	Confirm(ctx context.Context, username, secret string) (*model.Account, error)

	// Fields returns the ordered signup form descriptor for the rendering
	// collaborator.
	Fields() []SignupField
}

type signupUsecase struct {
	accounts repository.AccountRepository
	manual   *authmethod.ManualBackend
	tokens   token.Generator
	captcha  CaptchaVerifier
	sender   mailer.Sender
	logger   *zerolog.Logger
	cfg      *config.Config
}

// NewSignupUsecase creates the signup usecase.
func NewSignupUsecase(
	accounts repository.AccountRepository,
	manual *authmethod.ManualBackend,
	tokens token.Generator,
	captcha CaptchaVerifier,
	sender mailer.Sender,
	logger *zerolog.Logger,
	cfg *config.Config,
) SignupUsecase {
	return &signupUsecase{
		accounts: accounts,
		manual:   manual,
		tokens:   tokens,
		captcha:  captcha,
		sender:   sender,
		logger:   logger,
		cfg:      cfg,
	}
}

func (u *signupUsecase) Register(ctx context.Context, params RegisterParams) (*model.Account, error) {
	if u.cfg.RecaptchaEnabled && !u.captcha.Verify(ctx, params.CaptchaResponse) {
		return nil, ErrCaptchaFailed
	}

	username := strings.ToLower(params.Username)
	if u.cfg.UsernameIsEmail {
		username = strings.ToLower(params.Email)
	}

	country := params.Country
	city := params.City
	if !u.cfg.RequireCountryAndCity {
		country = u.cfg.DefaultCountry
		city = ""
	}

	passwordHash, err := u.manual.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	secret, err := u.tokens.Generate()
	if err != nil {
		return nil, err
	}

	account, err := u.accounts.CreateAccount(ctx, &model.Account{
		Username:      username,
		Email:         params.Email,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		City:          city,
		Country:       country,
		AuthMethod:    model.AuthManual,
		Realm:         model.RealmLocal,
		PasswordHash:  passwordHash,
		Confirmed:     false,
		ConfirmSecret: secret,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	subject, body := mailer.SignupConfirmation(account, secret, u.cfg.AppURL)
	if err := u.sender.Send(account.Email, subject, body); err != nil {
		u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to send confirmation email")
		return nil, ErrDeliveryFailure
	}

	return account, nil
}

func (u *signupUsecase) Confirm(ctx context.Context, username, secret string) (*model.Account, error) {
	account, err := u.accounts.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Do not reveal whether the username exists.
			return nil, ErrInvalidConfirmation
		}
		return nil, err
	}

	if account.Confirmed {
		return account, nil
	}

	if secret == "" || secret != account.ConfirmSecret {
		return nil, ErrInvalidConfirmation
	}

	if err := u.accounts.SetConfirmed(ctx, account.ID); err != nil {
		return nil, err
	}

	account.Confirmed = true
	account.ConfirmSecret = ""
	return account, nil
}

// defaultFieldOrder is the full field set in its default display order.
var defaultFieldOrder = []string{"username", "password", "email", "requirednames", "city", "country"}

func (u *signupUsecase) Fields() []SignupField {
	known := make(map[string]bool, len(defaultFieldOrder))
	for _, f := range defaultFieldOrder {
		known[f] = true
	}

	var order []string
	seen := make(map[string]bool)
	for _, f := range u.cfg.SignupFieldsOrder {
		f = strings.TrimSpace(f)
		if known[f] && !seen[f] {
			order = append(order, f)
			seen[f] = true
		}
	}

	// Fields missing from the configured order keep their default position
	// at the end.
	for _, f := range defaultFieldOrder {
		if !seen[f] {
			order = append(order, f)
		}
	}

	fields := make([]SignupField, 0, len(order))
	for _, f := range order {
		if f == "username" && u.cfg.UsernameIsEmail {
			continue
		}

		required := true
		if f == "city" || f == "country" {
			required = u.cfg.RequireCountryAndCity
		}

		fields = append(fields, SignupField{Name: f, Required: required})
	}

	return fields
}
