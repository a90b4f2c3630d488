// Package notice holds the user-facing status codes and messages returned by
// the password recovery flow.
package notice

import (
	"fmt"
	"regexp"
	"time"
)

// Status codes returned to the web boundary after a password reset request.
const (
	StatusConfirmMaybeSent = "emailpasswordconfirmmaybesent"
	StatusConfirmNotSent   = "emailpasswordconfirmnotsent"
	StatusConfirmNoEmail   = "emailpasswordconfirmnoemail"
	StatusAlreadySent      = "emailalreadysent"
	StatusConfirmSent      = "emailpasswordconfirmsent"
	StatusResetSent        = "emailresetconfirmsent"
)

var localPart = regexp.MustCompile(`([^@]*)@(.*)`)

// ObfuscateEmail masks the local part of an email address before it is echoed
// back to a requesting user, so a response never confirms the full address.
func ObfuscateEmail(email string) string {
	return localPart.ReplaceAllString(email, "******@$2")
}

// ConfirmMaybeSent is the non-committal notice used when the site protects
// usernames: it neither confirms nor denies that any account exists.
func ConfirmMaybeSent() string {
	return "If you supplied a correct username or email address then an email should have been sent to you. " +
		"It contains easy instructions to confirm and complete this password change. " +
		"If you continue to have difficulty, please contact the site administrator."
}

// ConfirmNotSent is the notice for an unknown username or email address.
func ConfirmNotSent() string {
	return "Sorry, we could not find an account with the details you supplied. " +
		"Please check your username or email address and try again."
}

// ConfirmNoEmail is the notice for an account with no email address on file.
func ConfirmNoEmail() string {
	return "An email address is not recorded for this account, so a password change " +
		"confirmation cannot be sent. Please contact the site administrator."
}

// AlreadySent is the notice for an account whose reset email has already been
// sent twice.
func AlreadySent() string {
	return "An email containing password reset instructions has already been sent to you. " +
		"Please check your email inbox, including your junk or spam folder."
}

// ConfirmSent tells the user an email with further instructions has been sent
// to the (obfuscated) address.
func ConfirmSent(obfuscatedEmail string) string {
	return fmt.Sprintf("An email should have been sent to your address at %s. "+
		"It contains easy instructions to confirm and complete this password change. "+
		"If you continue to have difficulty, please contact the site administrator.", obfuscatedEmail)
}

// ResetSent tells the user a reset link has been sent to the (obfuscated)
// address.
func ResetSent(obfuscatedEmail string) string {
	return fmt.Sprintf("If you supplied a correct username or email address then an email "+
		"should have been sent to you at %s. It contains a link to a page where you can "+
		"set a new password. The link is valid for a limited time.", obfuscatedEmail)
}

// NoResetRecord is the notice for a token that is unknown or too old to be
// recognized.
func NoResetRecord() string {
	return "No password reset request was found for this link. " +
		"If you still need to reset your password, please make a new request."
}

// ResetRecordExpired is the notice for a token whose request has expired
// within the grace window; it discloses the window length so the user can
// retry in time.
func ResetRecordExpired(window time.Duration) string {
	return fmt.Sprintf("Password reset links are valid for %d minutes and this one has expired. "+
		"Please make a new password reset request.", int(window.Minutes()))
}

// PasswordSet is the notice shown after a successful password change.
func PasswordSet() string {
	return "Your password has been set."
}
