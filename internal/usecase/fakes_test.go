package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
	"github.com/bambuco/moodle-auth-customized/internal/session"
)

// --- clock ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- account repository ---

type memAccounts struct {
	mu       sync.Mutex
	accounts map[bson.ObjectID]*model.Account
}

func newMemAccounts(accounts ...*model.Account) *memAccounts {
	m := &memAccounts{accounts: make(map[bson.ObjectID]*model.Account)}
	for _, a := range accounts {
		if a.ID.IsZero() {
			a.ID = bson.NewObjectID()
		}
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memAccounts) CreateAccount(_ context.Context, account *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account.ID = bson.NewObjectID()
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memAccounts) GetAccount(_ context.Context, id bson.ObjectID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (m *memAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Username == username && a.Realm == model.RealmLocal && !a.Deleted && !a.Suspended {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*model.Account
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) && a.Realm == model.RealmLocal && !a.Deleted && !a.Suspended {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID.Hex() < matches[j].ID.Hex() })
	copy := *matches[0]
	return &copy, nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id bson.ObjectID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (m *memAccounts) ClearLockout(_ context.Context, id bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LockoutCount = 0
	return nil
}

func (m *memAccounts) ClearForcePasswordChange(_ context.Context, id bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ForcePasswordChange = false
	return nil
}

func (m *memAccounts) SetConfirmed(_ context.Context, id bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Confirmed = true
	a.ConfirmSecret = ""
	return nil
}

// --- reset request repository ---

// memResets mirrors the Mongo repository's semantics: unique live record per
// account, token generation on create, delete as the serialization point.
type memResets struct {
	mu       sync.Mutex
	accounts *memAccounts
	clock    *testClock
	requests map[bson.ObjectID]*model.ResetRequest
	seq      int
}

func newMemResets(accounts *memAccounts, clock *testClock) *memResets {
	return &memResets{
		accounts: accounts,
		clock:    clock,
		requests: make(map[bson.ObjectID]*model.ResetRequest),
	}
}

func (m *memResets) FindByAccount(_ context.Context, accountID bson.ObjectID) (*model.ResetRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.requests {
		if r.AccountID == accountID {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memResets) FindByToken(ctx context.Context, tok string) (*model.Account, *model.ResetRequest, error) {
	m.mu.Lock()
	var found *model.ResetRequest
	for _, r := range m.requests {
		if r.Token == tok {
			copy := *r
			found = &copy
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, nil, repository.ErrNotFound
	}

	account, err := m.accounts.GetAccount(ctx, found.AccountID)
	if err != nil {
		return nil, nil, repository.ErrNotFound
	}
	return account, found, nil
}

func (m *memResets) Create(_ context.Context, account *model.Account) (*model.ResetRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.requests {
		if r.AccountID == account.ID {
			return nil, repository.ErrConflict
		}
	}

	m.seq++
	now := m.clock.Now()
	req := &model.ResetRequest{
		ID:          bson.NewObjectID(),
		AccountID:   account.ID,
		Token:       fmt.Sprintf("tok%029d", m.seq),
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.requests[req.ID] = req

	copy := *req
	return &copy, nil
}

func (m *memResets) MarkResent(_ context.Context, req *model.ResetRequest) (*model.ResetRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.requests[req.ID]
	if !ok || stored.ReRequestedAt != nil {
		return nil, repository.ErrAlreadyResent
	}

	now := m.clock.Now()
	stored.ReRequestedAt = &now
	stored.UpdatedAt = now

	copy := *stored
	return &copy, nil
}

func (m *memResets) Delete(_ context.Context, req *model.ResetRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[req.ID]; !ok {
		return false, nil
	}
	delete(m.requests, req.ID)
	return true, nil
}

func (m *memResets) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.requests {
		if r.RequestedAt.Before(olderThan) {
			delete(m.requests, id)
			n++
		}
	}
	return n, nil
}

func (m *memResets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// --- email sender ---

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) last() sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// --- auth backend ---

type fakeBackend struct {
	name       string
	disabled   bool
	noReset    bool
	refuse     bool
	mu         sync.Mutex
	updates    int
	lastUpdate string
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Enabled() bool { return !b.disabled }

func (b *fakeBackend) CanResetPassword() bool { return !b.noReset }

func (b *fakeBackend) UpdatePassword(_ context.Context, account *model.Account, newPassword string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refuse {
		return false, nil
	}
	b.updates++
	b.lastUpdate = newPassword
	account.PasswordHash = "hash:" + newPassword
	return true, nil
}

// --- session manager ---

type fakeSessions struct {
	mu          sync.Mutex
	established int
	killed      int
}

func (f *fakeSessions) Establish(_ context.Context, account *model.Account) (*session.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.established++
	return &session.Tokens{
		SessionID:    bson.NewObjectID(),
		AccessToken:  "access",
		RefreshToken: "refresh",
	}, nil
}

func (f *fakeSessions) KillOtherSessions(_ context.Context, _, _ bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.killed++
	return nil
}

// --- password history ---

type fakeHistory struct {
	mu     sync.Mutex
	hashes []string
}

func (f *fakeHistory) Add(_ context.Context, _ bson.ObjectID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hashes = append(f.hashes, hash)
	return nil
}

func (f *fakeHistory) ListForAccount(_ context.Context, _ bson.ObjectID) ([]model.PasswordHistory, error) {
	return nil, nil
}
