package accounts

import "context"

// Message is a typed lifecycle event published by the account core.
type Message interface {
	Type() string
}

// Dispatcher consumes lifecycle messages for delivery/auditing purposes.
// Dispatch is fire and forget from the caller's point of view: the core
// publishes after its own state change is persisted and does not retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, msg Message) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, Message) error {
	return nil
}

func normalizeDispatcher(d Dispatcher) Dispatcher {
	if d == nil {
		return noopDispatcher{}
	}
	return d
}

// AccountRegisteredMessage is published after a new account is persisted.
type AccountRegisteredMessage struct {
	Account *Account `json:"account"`
}

func (m AccountRegisteredMessage) Type() string { return "account.registered" }

// AccountUpdatedMessage is published after every update, including ones
// that changed nothing.
type AccountUpdatedMessage struct {
	Account *Account `json:"account"`
}

func (m AccountUpdatedMessage) Type() string { return "account.updated" }

// AccountVerifiedMessage is published once an account reaches the
// verified state.
type AccountVerifiedMessage struct {
	Account *Account `json:"account"`
}

func (m AccountVerifiedMessage) Type() string { return "account.verified" }

// PasswordResetRequestedMessage carries the raw token value. The
// consumer owns delivering it to the user through a side channel; the
// core never sends email itself.
type PasswordResetRequestedMessage struct {
	Account *Account `json:"account"`
	Token   string   `json:"token"`
}

func (m PasswordResetRequestedMessage) Type() string { return "account.password_reset.requested" }

// PasswordResetMessage is published after a reset token was consumed
// and the new credential persisted.
type PasswordResetMessage struct {
	Account *Account `json:"account"`
}

func (m PasswordResetMessage) Type() string { return "account.password_reset" }
