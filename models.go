package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"password_hash,omitempty"`
	IsAdmin       bool       `bun:"is_admin" json:"is_admin,omitempty"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsVerified reports whether the account completed email verification.
// The transition is one directional: once VerifiedAt is set it never clears.
func (a *Account) IsVerified() bool {
	return a != nil && a.VerifiedAt != nil
}

// FullName joins the optional name parts.
func (a *Account) FullName() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Token is a single use, expiring numeric secret scoped to one account.
// There is no purpose column: the same row shape backs both the email
// verification and the password reset flows, and the flows themselves
// establish which account a value may act on.
type Token struct {
	bun.BaseModel `bun:"table:account_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Value         string     `bun:"value,notnull" json:"value,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the token can no longer validate at the
// given instant. The boundary is inclusive: a token expiring exactly
// now is expired.
func (t *Token) IsExpired(now time.Time) bool {
	if t == nil {
		return true
	}
	return !t.ExpiresAt.After(now)
}
