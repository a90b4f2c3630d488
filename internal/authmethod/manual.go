package authmethod

import (
	"context"

	"github.com/matthewhartstonge/argon2"

	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
)

// ManualBackend is the local email-and-password authentication method.
// Credentials are hashed with argon2 and stored on the account record.
type ManualBackend struct {
	accounts repository.AccountRepository
	argon    argon2.Config
}

// NewManualBackend creates the local password backend.
func NewManualBackend(accounts repository.AccountRepository) *ManualBackend {
	return &ManualBackend{
		accounts: accounts,
		argon:    argon2.DefaultConfig(),
	}
}

func (b *ManualBackend) Name() string { return model.AuthManual }

func (b *ManualBackend) Enabled() bool { return true }

func (b *ManualBackend) CanResetPassword() bool { return true }

func (b *ManualBackend) UpdatePassword(
	ctx context.Context,
	account *model.Account,
	newPassword string,
) (bool, error) {
	hash, err := b.HashPassword(newPassword)
	if err != nil {
		return false, err
	}

	if err := b.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return false, err
	}

	account.PasswordHash = hash
	return true, nil
}

// HashPassword hashes a plaintext password with the backend's argon2 config.
func (b *ManualBackend) HashPassword(password string) (string, error) {
	encoded, err := b.argon.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// VerifyPassword checks a plaintext password against an encoded hash.
func (b *ManualBackend) VerifyPassword(password, encodedHash string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
