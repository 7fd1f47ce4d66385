// Package bootstrap decides once per process start whether a persisted token
// still represents a valid session.
package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/session"
)

// Phase is the bootstrap state
type Phase int32

const (
	Checking Phase = iota
	Authenticated
	Unauthenticated
)

func (p Phase) String() string {
	switch p {
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Verifier confirms the subject of the current token
type Verifier interface {
	VerifyToken(ctx context.Context) (*api.User, error)
}

// Bootstrapper runs the one-time session check
type Bootstrapper struct {
	session  *session.Session
	verifier Verifier
	logger   zerolog.Logger

	classify   Classifier
	retries    int
	retryDelay time.Duration

	phase atomic.Int32
	once  sync.Once
	done  chan struct{}
}

// Option configures a Bootstrapper
type Option func(*Bootstrapper)

// WithClassifier sets the failure classification hook. The default is FailClosed.
func WithClassifier(c Classifier) Option {
	return func(b *Bootstrapper) {
		if c != nil {
			b.classify = c
		}
	}
}

// WithRetries sets how often a transient failure is retried and the delay between attempts
func WithRetries(retries int, delay time.Duration) Option {
	return func(b *Bootstrapper) {
		if retries >= 0 {
			b.retries = retries
		}
		if delay >= 0 {
			b.retryDelay = delay
		}
	}
}

// New creates a Bootstrapper in the Checking phase
func New(sess *session.Session, verifier Verifier, log zerolog.Logger, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		session:  sess,
		verifier: verifier,
		logger:   log.With().Str("component", "bootstrap").Logger(),
		classify: FailClosed,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.phase.Store(int32(Checking))
	return b
}

// Phase returns the current phase
func (b *Bootstrapper) Phase() Phase {
	return Phase(b.phase.Load())
}

// Done is closed when the bootstrap has left Checking
func (b *Bootstrapper) Done() <-chan struct{} {
	return b.done
}

// Start runs the bootstrap in the background
func (b *Bootstrapper) Start(ctx context.Context) {
	go b.Run(ctx)
}

// Wait blocks until the bootstrap finishes or ctx is done
func (b *Bootstrapper) Wait(ctx context.Context) (Phase, error) {
	select {
	case <-b.done:
		return b.Phase(), nil
	case <-ctx.Done():
		return b.Phase(), ctx.Err()
	}
}

// Run performs the check. It leaves Checking only once verification has
// settled, and has no timeout of its own: bound it with ctx. Only the first
// call does any work; later calls wait for it and return the same phase.
func (b *Bootstrapper) Run(ctx context.Context) Phase {
	b.once.Do(func() {
		phase := b.run(ctx)
		b.phase.Store(int32(phase))
		close(b.done)
	})
	<-b.done
	return b.Phase()
}

func (b *Bootstrapper) run(ctx context.Context) Phase {
	stored := b.session.State()
	if stored.Token == "" {
		b.logger.Debug().Msg("No stored token - starting signed out")
		return Unauthenticated
	}

	// A Logout while the request is in flight bumps the generation, so a late
	// success below cannot resurrect the session.
	gen := b.session.Generation()

	for attempt := 0; ; attempt++ {
		user, err := b.verifier.VerifyToken(ctx)
		if err == nil {
			return b.accept(gen, stored, user)
		}

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			// Aborted by the caller: nothing was learned about the token
			b.logger.Debug().Err(err).Msg("Token verification cancelled")
			return Unauthenticated
		}

		if b.classify(err) != VerdictTransient {
			b.logger.Info().Err(err).Msg("Stored token rejected - logging out")
			b.session.Logout()
			return Unauthenticated
		}

		if attempt < b.retries {
			b.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Token verification failed - retrying")
			if !sleep(ctx, b.retryDelay) {
				return Unauthenticated
			}
			continue
		}

		return b.retain(gen, stored, err)
	}
}

func (b *Bootstrapper) accept(gen uint64, stored session.State, user *api.User) Phase {
	id := session.Identity{
		Email:  user.Email,
		Token:  stored.Token,
		UserID: user.UserID(),
	}
	if id.UserID == "" {
		id.UserID = stored.UserID
	}

	applied, err := b.session.LoginIfGeneration(gen, id)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Verification response unusable - logging out")
		b.session.Logout()
		return Unauthenticated
	}
	if !applied {
		b.logger.Info().Msg("Session was logged out during verification - ignoring result")
		return Unauthenticated
	}

	b.logger.Debug().Str("email", id.Email).Msg("Session restored")
	return Authenticated
}

// retain keeps the stored identity when the backend could not be reached
func (b *Bootstrapper) retain(gen uint64, stored session.State, cause error) Phase {
	applied, err := b.session.LoginIfGeneration(gen, stored.Identity())
	if err != nil {
		b.logger.Warn().Err(cause).Msg("Backend unreachable and no stored identity to retain - logging out")
		b.session.Logout()
		return Unauthenticated
	}
	if !applied {
		return Unauthenticated
	}

	b.logger.Warn().Err(cause).Msg("Backend unreachable - keeping stored session without verification")
	return Authenticated
}

// sleep waits for d or until ctx is done, reporting whether d elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
