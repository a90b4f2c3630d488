package authmethod

import (
	"context"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// NoLoginBackend is the method assigned to accounts that must never log in.
// It refuses every capability.
type NoLoginBackend struct{}

func (NoLoginBackend) Name() string { return model.AuthNoLogin }

func (NoLoginBackend) Enabled() bool { return false }

func (NoLoginBackend) CanResetPassword() bool { return false }

func (NoLoginBackend) UpdatePassword(context.Context, *model.Account, string) (bool, error) {
	return false, nil
}

// GuestBackend serves the anonymous guest account. Guests cannot hold a
// password of their own.
type GuestBackend struct{}

func (GuestBackend) Name() string { return model.AuthGuest }

func (GuestBackend) Enabled() bool { return true }

func (GuestBackend) CanResetPassword() bool { return false }

func (GuestBackend) UpdatePassword(context.Context, *model.Account, string) (bool, error) {
	return false, nil
}
