package accounts

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the sweeper runs when no interval
// is configured.
var DefaultSweepInterval = 15 * time.Minute

// Sweeper periodically deletes expired tokens across all accounts. The
// sweep is idempotent and safe to run concurrently with any account or
// token operation: an expired row is never a valid lookup target, so
// removal can not race a legitimate read.
type Sweeper struct {
	tokens   *TokenService
	interval time.Duration
	logger   Logger
}

// NewSweeper creates a sweeper over the given token service.
func NewSweeper(tokens *TokenService) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		interval: DefaultSweepInterval,
		logger:   defLogger{},
	}
}

// WithInterval overrides the sweep cadence.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithLogger overrides the logger used by the sweeper.
func (s *Sweeper) WithLogger(logger Logger) *Sweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Run blocks sweeping on the configured cadence until the context is
// cancelled. Sweep failures are logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs one pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	return s.tokens.DeleteExpired(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("token sweep failed", "error", err)
		return
	}

	if removed > 0 {
		s.logger.Debug("token sweep removed %d expired tokens", removed)
	}
}
