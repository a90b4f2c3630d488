package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
)

// AccountLookup resolves a human-supplied identifier to at most one account.
type AccountLookup interface {
	// Resolve finds the account for the given username or email. Exactly one
	// of the two is expected to be non-empty. A missing account is returned
	// as (nil, nil), not as an error: absence is an ordinary outcome the
	// caller must mask for privacy.
	Resolve(ctx context.Context, username, email string) (*model.Account, error)
}

// ErrInvalidRequest is returned when neither a username nor an email was
// supplied.
var ErrInvalidRequest = errors.New("either a username or an email address is required")

type accountLookup struct {
	accounts repository.AccountRepository
}

// NewAccountLookup creates an AccountLookup backed by the account store.
func NewAccountLookup(accounts repository.AccountRepository) AccountLookup {
	return &accountLookup{accounts: accounts}
}

func (l *accountLookup) Resolve(ctx context.Context, username, email string) (*model.Account, error) {
	if username == "" && email == "" {
		return nil, ErrInvalidRequest
	}

	var (
		account *model.Account
		err     error
	)
	if username != "" {
		// Mimic the login page: usernames are matched lowercased.
		account, err = l.accounts.GetByUsername(ctx, strings.ToLower(username))
	} else {
		account, err = l.accounts.GetByEmail(ctx, email)
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return account, nil
}
