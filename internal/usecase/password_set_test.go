package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bambuco/moodle-auth-customized/internal/authmethod"
	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/model"
)

type commitFixture struct {
	cfg      *config.Config
	clock    *testClock
	accounts *memAccounts
	resets   *memResets
	backend  *fakeBackend
	sessions *fakeSessions
	history  *fakeHistory
	usecase  PasswordSetUsecase
}

func newCommitFixture(t *testing.T, cfg *config.Config, accounts ...*model.Account) *commitFixture {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.AppURL == "" {
		cfg.AppURL = "http://site.example"
	}
	if cfg.ResetWindow == 0 {
		cfg.ResetWindow = 30 * time.Minute
	}

	clock := newTestClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	memAcc := newMemAccounts(accounts...)
	memRes := newMemResets(memAcc, clock)
	backend := &fakeBackend{name: model.AuthManual}
	registry := authmethod.NewRegistry(backend, authmethod.NoLoginBackend{}, authmethod.GuestBackend{})
	sessions := &fakeSessions{}
	history := &fakeHistory{}
	logger := zerolog.Nop()

	u := NewPasswordSetUsecase(memRes, memAcc, history, registry, sessions, &logger, cfg, clock.Now)

	return &commitFixture{
		cfg:      cfg,
		clock:    clock,
		accounts: memAcc,
		resets:   memRes,
		backend:  backend,
		sessions: sessions,
		history:  history,
		usecase:  u,
	}
}

func (f *commitFixture) issue(t *testing.T, username string) *model.ResetRequest {
	t.Helper()
	account, err := f.accounts.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	req, err := f.resets.Create(context.Background(), account)
	require.NoError(t, err)
	return req
}

func TestValidateToken_UnknownToken(t *testing.T) {
	f := newCommitFixture(t, nil)

	check, err := f.usecase.ValidateToken(context.Background(), "nosuchtoken")
	require.NoError(t, err)
	assert.Equal(t, RejectionNoRecord, check.Rejection)
	assert.NotEmpty(t, check.Notice)
}

func TestValidateToken_AncientLooksLikeUnknown(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	f.clock.Advance(f.cfg.ResetWindow + config.GraceWindow + time.Second)

	ancient, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	unknown, err := f.usecase.ValidateToken(context.Background(), "nosuchtoken")
	require.NoError(t, err)

	// An ancient record is reported identically to one that never existed.
	assert.Equal(t, unknown, ancient)
}

func TestValidateToken_ExpiredWithinGrace(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	f.clock.Advance(f.cfg.ResetWindow + time.Second)

	check, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	assert.Equal(t, RejectionExpired, check.Rejection)
	assert.Contains(t, check.Notice, "30 minutes")
}

func TestValidateToken_NoLoginAccount(t *testing.T) {
	account := confirmedAccount("maria", "[email protected]")
	account.AuthMethod = model.AuthNoLogin
	f := newCommitFixture(t, nil, account)
	req := f.issue(t, "maria")

	check, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	assert.Equal(t, RejectionAccountLocked, check.Rejection)
}

func TestValidateToken_GuestAccount(t *testing.T) {
	account := confirmedAccount("guest", "[email protected]")
	account.AuthMethod = model.AuthGuest
	f := newCommitFixture(t, nil, account)
	req := f.issue(t, "guest")

	check, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	assert.Equal(t, RejectionNotAllowed, check.Rejection)
}

func TestValidateToken_Valid(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	check, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	assert.True(t, check.Valid())
	assert.Equal(t, "maria", check.Account.Username)
}

func TestCommit_SetsPasswordAndCleansUp(t *testing.T) {
	account := confirmedAccount("maria", "[email protected]")
	account.LockoutCount = 3
	account.ForcePasswordChange = true
	cfg := &config.Config{LogoutOnPasswordChange: true}
	f := newCommitFixture(t, cfg, account)
	req := f.issue(t, "maria")
	ctx := context.Background()

	check, result, err := f.usecase.Commit(ctx, req.Token, "new-password-1")
	require.NoError(t, err)
	require.True(t, check.Valid())
	require.NotNil(t, result)

	assert.Equal(t, "access", result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Notice)
	assert.Equal(t, 1, f.backend.updates)
	assert.Equal(t, "new-password-1", f.backend.lastUpdate)
	assert.Equal(t, 1, f.sessions.established)
	assert.Equal(t, 1, f.sessions.killed)
	assert.Len(t, f.history.hashes, 1)

	stored, err := f.accounts.GetByUsername(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LockoutCount)
	assert.False(t, stored.ForcePasswordChange)

	// The token is single use.
	assert.Equal(t, 0, f.resets.count())
	again, result, err := f.usecase.Commit(ctx, req.Token, "another-password")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, RejectionNoRecord, again.Rejection)
}

func TestCommit_NoLogoutWhenPolicyOff(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	_, result, err := f.usecase.Commit(context.Background(), req.Token, "new-password-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, f.sessions.killed)
	assert.Equal(t, 1, f.sessions.established)
}

func TestCommit_ExpiredAtCommitTime(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	// Valid when the form was displayed, expired by the time it is posted.
	check, err := f.usecase.ValidateToken(context.Background(), req.Token)
	require.NoError(t, err)
	require.True(t, check.Valid())

	f.clock.Advance(f.cfg.ResetWindow + time.Second)

	check, result, err := f.usecase.Commit(context.Background(), req.Token, "new-password-1")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, RejectionExpired, check.Rejection)
	assert.Equal(t, 0, f.backend.updates)
}

func TestCommit_BackendRefusesWrite(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	f.backend.refuse = true
	req := f.issue(t, "maria")

	_, _, err := f.usecase.Commit(context.Background(), req.Token, "new-password-1")
	assert.ErrorIs(t, err, ErrCredentialUpdateFailed)

	// The token was consumed before the write; a new request is required.
	assert.Equal(t, 0, f.resets.count())
}

func TestCommit_ConcurrentRedemptionSingleUse(t *testing.T) {
	f := newCommitFixture(t, nil, confirmedAccount("maria", "[email protected]"))
	req := f.issue(t, "maria")

	const attempts = 8
	results := make([]*CommitResult, attempts)
	checks := make([]*TokenCheck, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checks[i], results[i], errs[i] = f.usecase.Commit(context.Background(), req.Token, "new-password-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
	}

	committed := 0
	rejected := 0
	for i := 0; i < attempts; i++ {
		if results[i] != nil {
			committed++
		} else {
			assert.Equal(t, RejectionNoRecord, checks[i].Rejection)
			rejected++
		}
	}

	assert.Equal(t, 1, committed)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 1, f.backend.updates)
}
