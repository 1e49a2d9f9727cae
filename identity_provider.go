package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// LoginTracker stamps successful authentications. *AccountService
// satisfies it.
type LoginTracker interface {
	UpdateLastLogin(ctx context.Context, id uuid.UUID) (*Account, error)
}

// AccountProvider adapts the account store into an IdentityProvider for
// session issuance.
type AccountProvider struct {
	store   AccountStore
	hasher  PasswordAuthenticator
	tracker LoginTracker
	logger  Logger
}

var _ IdentityProvider = (*AccountProvider)(nil)

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountStore) *AccountProvider {
	return &AccountProvider{
		store:  store,
		hasher: BcryptHasher{},
		logger: defLogger{},
	}
}

// WithLoginTracker sets the tracker stamping LastLoginAt on success.
func (p *AccountProvider) WithLoginTracker(tracker LoginTracker) *AccountProvider {
	p.tracker = tracker
	return p
}

// WithPasswordAuthenticator overrides the credential hasher.
func (p *AccountProvider) WithPasswordAuthenticator(hasher PasswordAuthenticator) *AccountProvider {
	if hasher != nil {
		p.hasher = hasher
	}
	return p
}

// WithLogger overrides the logger used by the provider.
func (p *AccountProvider) WithLogger(logger Logger) *AccountProvider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// VerifyIdentity will find the account, compare the password, and
// return the identity. A lookup miss and a bad password collapse into
// the same error so callers can not probe for registered emails.
func (p *AccountProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := p.store.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := p.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if p.tracker != nil {
		if _, err := p.tracker.UpdateLastLogin(ctx, account.ID); err != nil {
			p.logger.Error("failed to track successful login", "error", err)
		}
	}

	return identityFromAccount(account), nil
}

// FindIdentityByIdentifier resolves an identity without verifying a
// credential.
func (p *AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := p.store.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}

	return identityFromAccount(account), nil
}

type authIdentity struct {
	id      string
	email   string
	isAdmin bool
}

func (a authIdentity) ID() string    { return a.id }
func (a authIdentity) Email() string { return a.email }
func (a authIdentity) IsAdmin() bool { return a.isAdmin }

func identityFromAccount(account *Account) Identity {
	return authIdentity{
		id:      account.ID.String(),
		email:   account.Email,
		isAdmin: account.IsAdmin,
	}
}
