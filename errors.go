package accounts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeAccountNotFound identifies lookup misses by account id.
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	// TextCodeAlreadyVerified identifies verification attempts on a terminal account.
	TextCodeAlreadyVerified = "ACCOUNT_ALREADY_VERIFIED"
	// TextCodeInvalidToken covers every negative token outcome: wrong value,
	// wrong owner, expired, consumed, or absent. Callers cannot distinguish
	// the sub cases from the error alone.
	TextCodeInvalidToken = "TOKEN_INVALID_OR_EXPIRED"
)

// ErrAccountNotFound is returned when an account id does not resolve.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAlreadyVerified is returned when verify is called on an account
// whose verification state is terminal.
var ErrAlreadyVerified = goerrors.New("account is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrInvalidOrExpiredToken is the single negative outcome for token
// backed operations.
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is the error returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the error when passwords dont match hash
var ErrMismatchedHashAndPassword = errors.New("credentials do not match")

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnableToDecodeSession unable to decode JWT from session token
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// IsAccountNotFound checks for account lookup misses.
func IsAccountNotFound(err error) bool {
	return hasTextCode(err, TextCodeAccountNotFound)
}

// IsAlreadyVerified checks for the terminal verification state error.
func IsAlreadyVerified(err error) bool {
	return hasTextCode(err, TextCodeAlreadyVerified)
}

// IsInvalidTokenError checks for the collapsed negative token outcome.
func IsInvalidTokenError(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken)
}

func hasTextCode(err error, code string) bool {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if richErr, ok := current.(*goerrors.Error); ok && richErr.TextCode == code {
			return true
		}
	}
	return false
}
