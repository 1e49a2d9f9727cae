package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateAccountInput carries the fields accepted at account creation.
type CreateAccountInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UseHashid bool   `json:"-"`
}

// Validate enforces the required creation fields.
func (i CreateAccountInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Email, validation.Required, is.Email),
		validation.Field(&i.Password, validation.Required),
	)
}

// UpdateAccountInput carries partial updates. A nil field is absent and
// leaves the stored value untouched; this is PATCH, not PUT. Email is
// not here on purpose: it is never mutated by Update.
type UpdateAccountInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

// AccountService owns account creation, attribute updates, credential
// changes, and verification completion. It never touches token rows
// directly: issuance and consumption always go through the
// TokenService, then the service persists its own state change, then
// emits a lifecycle message.
type AccountService struct {
	repo       RepositoryManager
	tokens     *TokenService
	hasher     PasswordAuthenticator
	dispatcher Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewAccountService creates a service with sane defaults.
func NewAccountService(repo RepositoryManager, tokens *TokenService) *AccountService {
	return &AccountService{
		repo:       repo,
		tokens:     tokens,
		hasher:     BcryptHasher{},
		dispatcher: noopDispatcher{},
		logger:     defLogger{},
		now:        time.Now,
	}
}

// WithDispatcher sets the sink used to publish lifecycle messages.
func (s *AccountService) WithDispatcher(d Dispatcher) *AccountService {
	s.dispatcher = normalizeDispatcher(d)
	return s
}

// WithPasswordAuthenticator overrides the credential hasher.
func (s *AccountService) WithPasswordAuthenticator(hasher PasswordAuthenticator) *AccountService {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithLogger overrides the logger used by the service.
func (s *AccountService) WithLogger(logger Logger) *AccountService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *AccountService) WithClock(clock func() time.Time) *AccountService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create registers a new account. The very first account ever created
// is flagged as admin; the count-then-decide step runs inside one
// transaction but is still a read-then-write race under concurrent
// creation without an outside uniqueness guarantee.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account creation")
	default:
		return s.create(ctx, input)
	}
}

func (s *AccountService) create(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid account data")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		count, err := s.repo.Accounts().CountAllTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count accounts")
		}

		hash, err := s.hasher.HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account.Email = input.Email
		account.PasswordHash = hash
		account.FirstName = firstNameOrDefault(input.FirstName, input.Email)
		account.LastName = input.LastName
		account.IsAdmin = count == 0
		if input.UseHashid {
			if id, err := hashid.NewUUID(input.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = s.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account creation transaction failed")
	}

	s.dispatch(ctx, AccountRegisteredMessage{Account: account})

	return account, nil
}

// Update applies the fields present in the input and persists the
// record. An absent field never clears a stored value, the email is
// never mutated, and the updated message is dispatched even when
// nothing changed.
func (s *AccountService) Update(ctx context.Context, id uuid.UUID, input UpdateAccountInput) (*Account, error) {
	account, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		account.FirstName = *input.FirstName
	}

	if input.LastName != nil {
		account.LastName = *input.LastName
	}

	if input.Password != nil && *input.Password != "" {
		hash, err := s.hasher.HashPassword(*input.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		account.PasswordHash = hash
	}

	if err := s.repo.Accounts().Save(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist account update")
	}

	s.dispatch(ctx, AccountUpdatedMessage{Account: account})

	return account, nil
}

// Verify completes email verification. The terminal state check runs
// before the token is even inspected, so an already verified account
// rejects attempts without consuming anything. Token deletion happens
// after the state write: a crash in between leaves a stale but
// harmless token for the sweep.
func (s *AccountService) Verify(ctx context.Context, id uuid.UUID, tokenValue string) (*Account, error) {
	account, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.IsVerified() {
		return nil, ErrAlreadyVerified
	}

	token, err := s.tokens.Verify(ctx, tokenValue, account)
	if err != nil {
		return nil, err
	}

	if token == nil {
		return nil, ErrInvalidOrExpiredToken
	}

	now := s.now()
	account.VerifiedAt = &now

	if err := s.repo.Accounts().Save(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification")
	}

	if err := s.tokens.Delete(ctx, tokenValue); err != nil {
		return nil, err
	}

	s.dispatch(ctx, AccountVerifiedMessage{Account: account})

	return account, nil
}

// UpdateLastLogin stamps a successful authentication. No lifecycle
// message is dispatched for the stamp.
func (s *AccountService) UpdateLastLogin(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account.LastLoginAt = &now

	if err := s.repo.Accounts().Save(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist login timestamp")
	}

	return account, nil
}

// RequestPasswordReset issues a reset token for the account behind the
// email. An unknown email returns silently with no error and no
// message: callers must not be able to tell "no such account" from
// "reset requested".
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for password reset")
	}

	value, err := s.tokens.Generate(ctx, account,
		WithTokenLength(DefaultTokenLength),
		WithTokenDuration(DefaultTokenDuration),
	)
	if err != nil {
		return err
	}

	s.dispatch(ctx, PasswordResetRequestedMessage{Account: account, Token: value})

	return nil
}

// ResetPassword consumes a reset token and replaces the credential. The
// token is the authorization: there is no separate identity claim from
// the caller.
func (s *AccountService) ResetPassword(ctx context.Context, tokenValue, newPassword string) (*Account, error) {
	token, err := s.tokens.FindTokenWithAccount(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	if token == nil {
		return nil, ErrInvalidOrExpiredToken
	}

	account := token.Account
	if account == nil {
		return nil, goerrors.New("token record is not associated with an account", goerrors.CategoryInternal)
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	account.PasswordHash = hash

	if err := s.repo.Accounts().Save(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new credential")
	}

	if err := s.tokens.Delete(ctx, tokenValue); err != nil {
		return nil, err
	}

	s.dispatch(ctx, PasswordResetMessage{Account: account})

	return account, nil
}

func (s *AccountService) loadAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := s.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}

// dispatch is fire and forget: a failing consumer never rolls back a
// persisted state change.
func (s *AccountService) dispatch(ctx context.Context, msg Message) {
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.logger.Warn("dispatch of %s message failed: %v", msg.Type(), err)
	}
}

func firstNameOrDefault(firstName, email string) string {
	if firstName != "" {
		return firstName
	}

	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}

	return email
}
