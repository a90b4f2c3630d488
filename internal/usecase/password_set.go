package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bambuco/moodle-auth-customized/internal/authmethod"
	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/notice"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
	"github.com/bambuco/moodle-auth-customized/internal/session"
)

// Rejection classifies why a reset token was refused.
type Rejection int

const (
	// RejectionNone means the token is valid.
	RejectionNone Rejection = iota

	// RejectionNoRecord means no usable reset request is known for the
	// token. Tokens past the grace window are reported identically to tokens
	// that never existed.
	RejectionNoRecord

	// RejectionExpired means the request exists but its reset window has
	// passed; the user should make a new request.
	RejectionExpired

	// RejectionAccountLocked means the account's auth method is disabled or
	// flagged non-login.
	RejectionAccountLocked

	// RejectionNotAllowed means the account is a guest account.
	RejectionNotAllowed
)

// TokenCheck is the outcome of validating a reset token.
type TokenCheck struct {
	Rejection Rejection
	Notice    string
	Account   *model.Account
	Request   *model.ResetRequest
}

// Valid reports whether the token may proceed to the password form or commit.
func (c *TokenCheck) Valid() bool {
	return c.Rejection == RejectionNone
}

// CommitResult is the outcome of a successful password set.
type CommitResult struct {
	Account     *model.Account
	Tokens      *session.Tokens
	Notice      string
	RedirectURL string
}

// PasswordSetUsecase validates redeemed reset tokens and performs the
// one-time password change with its account housekeeping.
type PasswordSetUsecase interface {
	// ValidateToken checks a token against the store, the reset and grace
	// windows, and the account's auth method.
	ValidateToken(ctx context.Context, tok string) (*TokenCheck, error)

	// Commit re-validates the token, consumes it and writes the new
	// credential. The returned TokenCheck carries the rejection when the
	// token did not survive re-validation.
	Commit(ctx context.Context, tok, newPassword string) (*TokenCheck, *CommitResult, error)
}

type passwordSetUsecase struct {
	requests repository.ResetRequestRepository
	accounts repository.AccountRepository
	history  repository.PasswordHistoryRepository
	registry *authmethod.Registry
	sessions session.Manager
	logger   *zerolog.Logger
	cfg      *config.Config
	now      Clock
}

// NewPasswordSetUsecase creates the credential commit protocol. A nil clock
// defaults to time.Now.
func NewPasswordSetUsecase(
	requests repository.ResetRequestRepository,
	accounts repository.AccountRepository,
	history repository.PasswordHistoryRepository,
	registry *authmethod.Registry,
	sessions session.Manager,
	logger *zerolog.Logger,
	cfg *config.Config,
	now Clock,
) PasswordSetUsecase {
	if now == nil {
		now = time.Now
	}

	return &passwordSetUsecase{
		requests: requests,
		accounts: accounts,
		history:  history,
		registry: registry,
		sessions: sessions,
		logger:   logger,
		cfg:      cfg,
		now:      now,
	}
}

func (u *passwordSetUsecase) ValidateToken(ctx context.Context, tok string) (*TokenCheck, error) {
	account, req, err := u.requests.FindByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &TokenCheck{Rejection: RejectionNoRecord, Notice: notice.NoResetRecord()}, nil
		}
		return nil, err
	}

	now := u.now()
	if req.Ancient(now, u.cfg.ResetWindow, config.GraceWindow) {
		// Not even a recently expired request. Indistinguishable from a
		// token that never existed.
		return &TokenCheck{Rejection: RejectionNoRecord, Notice: notice.NoResetRecord()}, nil
	}

	if req.Expired(now, u.cfg.ResetWindow) {
		return &TokenCheck{
			Rejection: RejectionExpired,
			Notice:    notice.ResetRecordExpired(u.cfg.ResetWindow),
		}, nil
	}

	if account.AuthMethod == model.AuthNoLogin || !u.backendEnabled(account) {
		return &TokenCheck{Rejection: RejectionAccountLocked}, nil
	}

	if account.IsGuest() {
		return &TokenCheck{Rejection: RejectionNotAllowed}, nil
	}

	return &TokenCheck{Account: account, Request: req}, nil
}

func (u *passwordSetUsecase) backendEnabled(account *model.Account) bool {
	b, err := u.registry.Get(account.AuthMethod)
	if err != nil {
		return false
	}

	return b.Enabled()
}

func (u *passwordSetUsecase) Commit(
	ctx context.Context,
	tok, newPassword string,
) (*TokenCheck, *CommitResult, error) {
	// Wall-clock time may have passed across the form round-trip; an earlier
	// validation proves nothing now.
	check, err := u.ValidateToken(ctx, tok)
	if err != nil {
		return nil, nil, err
	}
	if !check.Valid() {
		return check, nil, nil
	}

	account := check.Account

	// Consume the token before touching the credential. Only the caller that
	// removes the record proceeds; a concurrent redeemer observes not-found.
	// A crash after this point loses the reset rather than allowing replay.
	deleted, err := u.requests.Delete(ctx, check.Request)
	if err != nil {
		return nil, nil, err
	}
	if !deleted {
		return &TokenCheck{Rejection: RejectionNoRecord, Notice: notice.NoResetRecord()}, nil, nil
	}

	b, err := u.registry.Get(account.AuthMethod)
	if err != nil {
		return nil, nil, ErrCredentialUpdateFailed
	}

	ok, err := b.UpdatePassword(ctx, account, newPassword)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrCredentialUpdateFailed
	}

	if err := u.history.Add(ctx, account.ID, account.PasswordHash); err != nil {
		u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to record password history")
	}

	tokens, err := u.sessions.Establish(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	if u.cfg.LogoutOnPasswordChange {
		if err := u.sessions.KillOtherSessions(ctx, account.ID, tokens.SessionID); err != nil {
			u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to kill other sessions")
		}
	}

	// Reset the login lockout and clear any requirement to change passwords.
	if err := u.accounts.ClearLockout(ctx, account.ID); err != nil {
		u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to clear lockout")
	}
	if err := u.accounts.ClearForcePasswordChange(ctx, account.ID); err != nil {
		u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to clear force password change")
	}

	return check, &CommitResult{
		Account:     account,
		Tokens:      tokens,
		Notice:      notice.PasswordSet(),
		RedirectURL: u.cfg.AppURL + "/",
	}, nil
}
