package mailer

import (
	"fmt"
	"time"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// ResetConfirmation composes the email carrying a password reset link. The
// link embeds the single-use token.
func ResetConfirmation(account *model.Account, tok, appURL string, window time.Duration) (subject, body string) {
	link := fmt.Sprintf("%s/auth/forgot-password?token=%s", appURL, tok)
	minutes := int(window.Minutes())

	subject = "Password reset request"
	body = fmt.Sprintf(
		"Hi %s,\n\n"+
			"A password reset was requested for your account '%s'.\n\n"+
			"To confirm this request, and set a new password for your account, please go to the "+
			"following web address:\n\n%s\n\n"+
			"This link is valid for %d minutes from the time this reset was first requested. "+
			"If this password reset was not requested by you, no action is needed.\n\n"+
			"If you need help, please contact the site administrator.",
		account.FirstName, account.Username, link, minutes,
	)

	return subject, body
}

// ChangeInfo composes the generic email sent when an account cannot use
// self-service password recovery.
func ChangeInfo(account *model.Account) (subject, body string) {
	subject = "Change password information"
	body = fmt.Sprintf(
		"Hi %s,\n\n"+
			"Someone (probably you) requested a new password for your account '%s'.\n\n"+
			"Unfortunately your password cannot be reset automatically. "+
			"Please contact the site administrator to have it changed for you.",
		account.FirstName, account.Username,
	)

	return subject, body
}

// SignupConfirmation composes the account confirmation email sent after
// self-registration.
func SignupConfirmation(account *model.Account, secret, appURL string) (subject, body string) {
	link := fmt.Sprintf("%s/auth/signup/confirm?username=%s&secret=%s", appURL, account.Username, secret)

	subject = "Account confirmation"
	body = fmt.Sprintf(
		"Hi %s,\n\n"+
			"A new account has been requested using your email address.\n\n"+
			"To confirm your new account, please go to the following web address:\n\n%s\n\n"+
			"If you need help, please contact the site administrator.",
		account.FirstName, link,
	)

	return subject, body
}
