// Package accounts is the identity and account lifecycle core behind a
// web backend: account creation, credential verification, session
// issuance, and a short lived one time token mechanism shared by the
// email verification and password reset flows.
//
// Services:
//   - AccountService owns account creation, attribute updates,
//     credential changes, verification completion, and password reset
//     completion. It orchestrates token issuance and consumption
//     through the TokenService, persists its own state change, then
//     publishes a typed lifecycle message.
//   - TokenService owns generation, lookup, validation, and deletion of
//     single use, expiring, numeric tokens scoped to one account. It
//     has no knowledge of why a token was issued.
//
// Lifecycle messages:
//   - Dispatcher is a light-weight publish contract used by the
//     AccountService to announce registrations, updates, verifications,
//     and password resets. Dispatch runs best-effort after persistence
//     (errors are logged) so you can forward to a queue or mailer
//     without blocking the state change.
//
// Background work:
//   - Sweeper periodically removes expired tokens across all accounts.
//     It is idempotent and safe to run concurrently with every other
//     operation.
package accounts
