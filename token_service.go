package accounts

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultTokenLength is the number of digits issued when no length
	// option is given. No uniqueness constraint backs generation, so
	// collisions within a TTL window are possible in principle.
	DefaultTokenLength = 6
	// DefaultTokenDuration is the issuance TTL when no duration option
	// is given.
	DefaultTokenDuration = time.Hour
)

// TokenOption customizes a single Generate call.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	length   int
	duration time.Duration
}

// WithTokenLength overrides the number of digits for one issuance.
func WithTokenLength(length int) TokenOption {
	return func(o *tokenOptions) {
		if length > 0 {
			o.length = length
		}
	}
}

// WithTokenDuration overrides the TTL for one issuance.
func WithTokenDuration(duration time.Duration) TokenOption {
	return func(o *tokenOptions) {
		o.duration = duration
	}
}

// TokenService generates, validates, and retires single use numeric
// tokens scoped to an account. It has no knowledge of why a token was
// issued: the same store backs the verification and reset flows.
type TokenService struct {
	repo   TokenStore
	logger Logger
	now    func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(repo TokenStore) *TokenService {
	return &TokenService{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used by the service.
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Generate produces a uniformly random numeric value, persists a token
// row owned by the account, and returns the value. Each digit is drawn
// independently, so leading zeros are valid.
func (ts *TokenService) Generate(ctx context.Context, account *Account, opts ...TokenOption) (string, error) {
	if account == nil {
		return "", goerrors.New("token requires an owning account", goerrors.CategoryBadInput)
	}

	options := tokenOptions{
		length:   DefaultTokenLength,
		duration: DefaultTokenDuration,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	value, err := randomDigits(options.length)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token value")
	}

	record := &Token{
		Value:     value,
		AccountID: account.ID,
		ExpiresAt: ts.now().Add(options.duration),
	}

	if _, err := ts.repo.Store(ctx, record); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist token")
	}

	return value, nil
}

// Verify returns the matching token when the value exists for that
// exact account and has not expired; every negative case returns
// (nil, nil). A value issued to a different account never validates
// even when it matches, and expiry uses a strict comparison.
func (ts *TokenService) Verify(ctx context.Context, value string, account *Account) (*Token, error) {
	if value == "" || account == nil {
		return nil, nil
	}

	record, err := ts.repo.FindValidForAccount(ctx, value, account.ID, ts.now())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token")
	}

	return record, nil
}

// FindTokenWithAccount is the account agnostic lookup used by the reset
// flow, where the token itself establishes identity. The owner relation
// is loaded on the returned record; absent or expired values return
// (nil, nil).
func (ts *TokenService) FindTokenWithAccount(ctx context.Context, value string) (*Token, error) {
	if value == "" {
		return nil, nil
	}

	record, err := ts.repo.FindValid(ctx, value, ts.now())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token")
	}

	return record, nil
}

// Delete consumes a token value. Deleting an absent or empty value is a
// no-op, never an error.
func (ts *TokenService) Delete(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}

	if err := ts.repo.DeleteByValue(ctx, value); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete token")
	}
	return nil
}

// DeleteExpired sweeps every token at or past its expiry, across all
// accounts, in one pass. Safe to run concurrently with any other
// operation: an expired row is never a valid lookup target.
func (ts *TokenService) DeleteExpired(ctx context.Context) (int, error) {
	removed, err := ts.repo.DeleteExpired(ctx, ts.now())
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sweep expired tokens")
	}
	return removed, nil
}

func randomDigits(length int) (string, error) {
	if length < 1 {
		return "", goerrors.New("token length must be at least one digit", goerrors.CategoryBadInput)
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
