package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu      sync.Mutex
	records map[uuid.UUID]*accounts.Account
	failErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{records: map[uuid.UUID]*accounts.Account{}}
}

func (m *memAccounts) FindByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error) {
	return m.FindByIDTx(ctx, nil, id)
}

func (m *memAccounts) FindByIDTx(_ context.Context, _ bun.IDB, id uuid.UUID) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if record, ok := m.records[id]; ok {
		return record, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return m.FindByEmailTx(ctx, nil, email)
}

func (m *memAccounts) FindByEmailTx(_ context.Context, _ bun.IDB, email string) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, record := range m.records {
		if record.Email == email {
			return record, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (m *memAccounts) CountAll(ctx context.Context) (int, error) {
	return m.CountAllTx(ctx, nil)
}

func (m *memAccounts) CountAllTx(context.Context, bun.IDB) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memAccounts) Register(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	return m.RegisterTx(ctx, nil, record)
}

func (m *memAccounts) RegisterTx(_ context.Context, _ bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m.records[record.ID] = record
	return record, nil
}

func (m *memAccounts) Save(ctx context.Context, record *accounts.Account) error {
	return m.SaveTx(ctx, nil, record)
}

func (m *memAccounts) SaveTx(_ context.Context, _ bun.IDB, record *accounts.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.records[record.ID] = record
	return nil
}

// memTokens is an in-memory TokenStore. Owner relations are resolved
// through the paired memAccounts.
type memTokens struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*accounts.Token
	accounts *memAccounts
	failErr  error
}

func newMemTokens(accountStore *memAccounts) *memTokens {
	return &memTokens{
		records:  map[uuid.UUID]*accounts.Token{},
		accounts: accountStore,
	}
}

func (m *memTokens) Store(ctx context.Context, record *accounts.Token) (*accounts.Token, error) {
	return m.StoreTx(ctx, nil, record)
}

func (m *memTokens) StoreTx(_ context.Context, _ bun.IDB, record *accounts.Token) (*accounts.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m.records[record.ID] = record
	return record, nil
}

func (m *memTokens) FindValid(ctx context.Context, value string, now time.Time) (*accounts.Token, error) {
	return m.FindValidTx(ctx, nil, value, now)
}

func (m *memTokens) FindValidTx(_ context.Context, _ bun.IDB, value string, now time.Time) (*accounts.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, record := range m.records {
		if record.Value == value && record.ExpiresAt.After(now) {
			if m.accounts != nil {
				record.Account = m.accounts.records[record.AccountID]
			}
			return record, nil
		}
	}
	return nil, nil
}

func (m *memTokens) FindValidForAccount(ctx context.Context, value string, accountID uuid.UUID, now time.Time) (*accounts.Token, error) {
	return m.FindValidForAccountTx(ctx, nil, value, accountID, now)
}

func (m *memTokens) FindValidForAccountTx(_ context.Context, _ bun.IDB, value string, accountID uuid.UUID, now time.Time) (*accounts.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, record := range m.records {
		if record.Value == value && record.AccountID == accountID && record.ExpiresAt.After(now) {
			return record, nil
		}
	}
	return nil, nil
}

func (m *memTokens) DeleteByValue(ctx context.Context, value string) error {
	return m.DeleteByValueTx(ctx, nil, value)
}

func (m *memTokens) DeleteByValueTx(_ context.Context, _ bun.IDB, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for id, record := range m.records {
		if record.Value == value {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return m.DeleteExpiredTx(ctx, nil, now)
}

func (m *memTokens) DeleteExpiredTx(_ context.Context, _ bun.IDB, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	removed := 0
	for id, record := range m.records {
		if !record.ExpiresAt.After(now) {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// fakeRepoManager wires the in-memory stores behind the
// RepositoryManager interface. RunInTx invokes the callback with a zero
// transaction; the fakes ignore it.
type fakeRepoManager struct {
	accounts *memAccounts
	tokens   *memTokens
}

func newFakeRepoManager() *fakeRepoManager {
	accountStore := newMemAccounts()
	return &fakeRepoManager{
		accounts: accountStore,
		tokens:   newMemTokens(accountStore),
	}
}

func (f *fakeRepoManager) Validate() error { return nil }
func (f *fakeRepoManager) MustValidate()   {}

func (f *fakeRepoManager) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	var tx bun.Tx
	return fn(ctx, tx)
}

func (f *fakeRepoManager) Accounts() accounts.AccountStore { return f.accounts }
func (f *fakeRepoManager) Tokens() accounts.TokenStore     { return f.tokens }

var _ accounts.RepositoryManager = (*fakeRepoManager)(nil)

// capturingDispatcher records every published message.
type capturingDispatcher struct {
	mu   sync.Mutex
	msgs []accounts.Message
}

func (c *capturingDispatcher) Dispatch(_ context.Context, msg accounts.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturingDispatcher) messages() []accounts.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *capturingDispatcher) last() accounts.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return nil
	}
	return c.msgs[len(c.msgs)-1]
}

// fakeHasher avoids bcrypt cost in service tests.
type fakeHasher struct{}

func (fakeHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", accounts.ErrNoEmptyString
	}
	return "hashed:" + password, nil
}

func (fakeHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "hashed:"+password {
		return accounts.ErrMismatchedHashAndPassword
	}
	return nil
}
