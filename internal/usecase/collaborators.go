package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

var (
	// ErrDeliveryFailure is returned when a required email could not be
	// delivered. Reset request state is not rolled back: the record persists
	// so a retry can resend.
	ErrDeliveryFailure = errors.New("failed to deliver email")

	// ErrCredentialUpdateFailed is returned when the auth backend refused the
	// credential write. The reset token is already consumed at that point, so
	// the user must start a brand-new reset request.
	ErrCredentialUpdateFailed = errors.New("failed to update credential")
)

// Clock supplies the current time. Injected so expiry decisions are testable.
type Clock func() time.Time

// CapabilityChecker decides whether an account holds the permission to change
// its own password. The default site policy grants it to everyone.
type CapabilityChecker interface {
	CanChangeOwnPassword(ctx context.Context, account *model.Account) bool
}

// AllowAllCapabilities grants every capability.
type AllowAllCapabilities struct{}

func (AllowAllCapabilities) CanChangeOwnPassword(context.Context, *model.Account) bool {
	return true
}

// CaptchaVerifier verifies a signup CAPTCHA response.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response string) bool
}

// NoopCaptcha accepts every response. Used when CAPTCHA is disabled.
type NoopCaptcha struct{}

func (NoopCaptcha) Verify(context.Context, string) bool { return true }
