package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_RequiresAnIdentifier(t *testing.T) {
	lookup := NewAccountLookup(newMemAccounts())

	_, err := lookup.Resolve(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolve_ByUsername(t *testing.T) {
	lookup := NewAccountLookup(newMemAccounts(confirmedAccount("maria", "[email protected]")))

	account, err := lookup.Resolve(context.Background(), "MARIA", "")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "maria", account.Username)
}

func TestResolve_ByEmailCaseInsensitive(t *testing.T) {
	lookup := NewAccountLookup(newMemAccounts(confirmedAccount("maria", "[email protected]")))

	account, err := lookup.Resolve(context.Background(), "", "[email protected]")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "maria", account.Username)
}

func TestResolve_MissingAccountIsNotAnError(t *testing.T) {
	lookup := NewAccountLookup(newMemAccounts())

	account, err := lookup.Resolve(context.Background(), "ghost", "")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestResolve_SkipsSuspendedAccounts(t *testing.T) {
	suspended := confirmedAccount("maria", "[email protected]")
	suspended.Suspended = true
	lookup := NewAccountLookup(newMemAccounts(suspended))

	account, err := lookup.Resolve(context.Background(), "maria", "")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestResolve_SkipsRemoteRealmAccounts(t *testing.T) {
	remote := confirmedAccount("maria", "[email protected]")
	remote.Realm = "remote"
	lookup := NewAccountLookup(newMemAccounts(remote))

	account, err := lookup.Resolve(context.Background(), "", "[email protected]")
	require.NoError(t, err)
	assert.Nil(t, account)
}
