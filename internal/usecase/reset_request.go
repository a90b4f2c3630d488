package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bambuco/moodle-auth-customized/internal/authmethod"
	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/mailer"
	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/notice"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
)

// ResetOutcome is the internal state reached by a password reset attempt,
// before the privacy policy decides what the requester gets to see.
type ResetOutcome int

const (
	// OutcomeNoAccount means no account matched the supplied identifier.
	OutcomeNoAccount ResetOutcome = iota

	// OutcomeIneligible means the account exists but cannot use self-service
	// reset; a generic "contact administrator" email was sent instead.
	OutcomeIneligible

	// OutcomeFreshIssued means a new reset request was created and emailed.
	OutcomeFreshIssued

	// OutcomeResent means the pending request's email was sent a second time.
	OutcomeResent

	// OutcomeAlreadyResent means the pending request was already re-sent
	// once; nothing was mutated and no email went out.
	OutcomeAlreadyResent

	// OutcomeNoEmail means the account has no email address on file.
	OutcomeNoEmail
)

// ResetResult is what the web boundary returns to the requesting user.
type ResetResult struct {
	Outcome     ResetOutcome
	Status      string
	Notice      string
	RedirectURL string
}

// ResetRequestUsecase decides, for each reset attempt, whether to issue a new
// token, resend the pending one, or refuse, and composes the
// privacy-preserving response.
type ResetRequestUsecase interface {
	ProcessRequest(ctx context.Context, username, email string) (*ResetResult, error)
}

type resetRequestUsecase struct {
	lookup       AccountLookup
	requests     repository.ResetRequestRepository
	registry     *authmethod.Registry
	capabilities CapabilityChecker
	sender       mailer.Sender
	logger       *zerolog.Logger
	cfg          *config.Config
	now          Clock
}

// NewResetRequestUsecase creates the reset request orchestrator. A nil clock
// defaults to time.Now.
func NewResetRequestUsecase(
	lookup AccountLookup,
	requests repository.ResetRequestRepository,
	registry *authmethod.Registry,
	capabilities CapabilityChecker,
	sender mailer.Sender,
	logger *zerolog.Logger,
	cfg *config.Config,
	now Clock,
) ResetRequestUsecase {
	if now == nil {
		now = time.Now
	}

	return &resetRequestUsecase{
		lookup:       lookup,
		requests:     requests,
		registry:     registry,
		capabilities: capabilities,
		sender:       sender,
		logger:       logger,
		cfg:          cfg,
		now:          now,
	}
}

func (u *resetRequestUsecase) ProcessRequest(ctx context.Context, username, email string) (*ResetResult, error) {
	account, err := u.lookup.Resolve(ctx, username, email)
	if err != nil {
		return nil, err
	}

	outcome := OutcomeNoAccount
	if account != nil {
		outcome, err = u.advance(ctx, account)
		if err != nil {
			return nil, err
		}
	}

	return u.compose(account, outcome), nil
}

// advance runs the token state machine for a resolved account.
func (u *resetRequestUsecase) advance(ctx context.Context, account *model.Account) (ResetOutcome, error) {
	if account.Email == "" {
		return OutcomeNoEmail, nil
	}

	if !u.eligible(ctx, account) {
		subject, body := mailer.ChangeInfo(account)
		if err := u.sender.Send(account.Email, subject, body); err != nil {
			u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to send change info email")
			return 0, ErrDeliveryFailure
		}
		return OutcomeIneligible, nil
	}

	req, outcome, err := u.issueOrResend(ctx, account)
	if err != nil {
		return 0, err
	}

	if outcome == OutcomeFreshIssued || outcome == OutcomeResent {
		subject, body := mailer.ResetConfirmation(account, req.Token, u.cfg.AppURL, u.cfg.ResetWindow)
		if err := u.sender.Send(account.Email, subject, body); err != nil {
			// The record stays in place so a later attempt can resend.
			u.logger.Error().Err(err).Str("account", account.Username).Msg("failed to send reset email")
			return 0, ErrDeliveryFailure
		}
	}

	return outcome, nil
}

func (u *resetRequestUsecase) eligible(ctx context.Context, account *model.Account) bool {
	if !account.Confirmed {
		return false
	}

	b, err := u.registry.Get(account.AuthMethod)
	if err != nil {
		return false
	}

	return b.Enabled() && b.CanResetPassword() && u.capabilities.CanChangeOwnPassword(ctx, account)
}

func (u *resetRequestUsecase) issueOrResend(
	ctx context.Context,
	account *model.Account,
) (*model.ResetRequest, ResetOutcome, error) {
	pending, err := u.requests.FindByAccount(ctx, account.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// Completely new reset request - common case.
		return u.create(ctx, account)

	case err != nil:
		return nil, 0, err

	case pending.Expired(u.now(), u.cfg.ResetWindow):
		// Preexisting, but expired request - delete the old record and issue
		// a fresh one. Expired requests are normally cleaned up by the
		// external sweeper.
		if _, err := u.requests.Delete(ctx, pending); err != nil {
			return nil, 0, err
		}
		return u.create(ctx, account)

	case pending.ReRequestedAt == nil:
		// Preexisting, valid request, first re-request. Re-sending the same
		// email once can help, eg with delays caused by greylisting.
		updated, err := u.requests.MarkResent(ctx, pending)
		if err != nil {
			if errors.Is(err, repository.ErrAlreadyResent) {
				return pending, OutcomeAlreadyResent, nil
			}
			return nil, 0, err
		}
		return updated, OutcomeResent, nil

	default:
		// Preexisting, valid request, already re-requested. No third email.
		return pending, OutcomeAlreadyResent, nil
	}
}

func (u *resetRequestUsecase) create(
	ctx context.Context,
	account *model.Account,
) (*model.ResetRequest, ResetOutcome, error) {
	req, err := u.requests.Create(ctx, account)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent request won the insert. Treat ours as a resend of
			// the winner's record.
			return u.resendExisting(ctx, account)
		}
		return nil, 0, err
	}

	return req, OutcomeFreshIssued, nil
}

func (u *resetRequestUsecase) resendExisting(
	ctx context.Context,
	account *model.Account,
) (*model.ResetRequest, ResetOutcome, error) {
	pending, err := u.requests.FindByAccount(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The winner's record vanished underneath us; give up quietly.
			return nil, OutcomeAlreadyResent, nil
		}
		return nil, 0, err
	}

	if pending.ReRequestedAt != nil {
		return pending, OutcomeAlreadyResent, nil
	}

	updated, err := u.requests.MarkResent(ctx, pending)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyResent) {
			return pending, OutcomeAlreadyResent, nil
		}
		return nil, 0, err
	}

	return updated, OutcomeResent, nil
}

// compose applies the site privacy policy to the state machine outcome. When
// usernames are protected, the response never reveals whether an account
// exists.
func (u *resetRequestUsecase) compose(account *model.Account, outcome ResetOutcome) *ResetResult {
	result := &ResetResult{
		Outcome:     outcome,
		RedirectURL: u.cfg.AppURL + "/",
	}

	switch {
	case u.cfg.ProtectUsernames:
		// Neither confirm nor deny the existence of any username or email.
		result.Status = notice.StatusConfirmMaybeSent
		result.Notice = notice.ConfirmMaybeSent()

	case account == nil:
		result.Status = notice.StatusConfirmNotSent
		result.Notice = notice.ConfirmNotSent()
		result.RedirectURL = u.cfg.AppURL + "/auth/forgot-password"

	case outcome == OutcomeNoEmail:
		result.Status = notice.StatusConfirmNoEmail
		result.Notice = notice.ConfirmNoEmail()

	case outcome == OutcomeResent, outcome == OutcomeAlreadyResent:
		result.Status = notice.StatusAlreadySent
		result.Notice = notice.AlreadySent()

	case outcome == OutcomeIneligible:
		result.Status = notice.StatusConfirmSent
		result.Notice = notice.ConfirmSent(notice.ObfuscateEmail(account.Email))

	default:
		result.Status = notice.StatusResetSent
		result.Notice = notice.ResetSent(notice.ObfuscateEmail(account.Email))
	}

	return result
}
