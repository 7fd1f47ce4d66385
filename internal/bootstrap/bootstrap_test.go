package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/session"
	"github.com/allone-dev/allone/internal/sessionstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeVerifier struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (*api.User, error)
}

func (f *fakeVerifier) VerifyToken(ctx context.Context) (*api.User, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

func seededSession(t *testing.T, token, email, userID string) (*session.Session, *sessionstore.MemoryBackend) {
	t.Helper()
	backend := sessionstore.NewMemoryBackend()
	if token != "" {
		backend.Set(sessionstore.KeyToken, token)
	}
	if email != "" {
		backend.Set(sessionstore.KeyUserEmail, email)
	}
	if userID != "" {
		backend.Set(sessionstore.KeyUserID, userID)
	}
	return session.New(sessionstore.New(backend, zerolog.Nop())), backend
}

func TestRun_NoTokenMakesNoRequest(t *testing.T) {
	sess, _ := seededSession(t, "", "", "")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		t.Fatal("verify must not be called without a token")
		return nil, nil
	}}

	b := New(sess, verifier, zerolog.Nop())
	assert.Equal(t, Checking, b.Phase())

	assert.Equal(t, Unauthenticated, b.Run(context.Background()))
	assert.Equal(t, int32(0), verifier.calls.Load())
	assert.False(t, sess.IsAuthenticated())
}

func TestRun_ValidTokenAuthenticates(t *testing.T) {
	sess, backend := seededSession(t, "tok", "a@b.com", "")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return &api.User{ID: "u1", Email: "a@b.com"}, nil
	}}

	b := New(sess, verifier, zerolog.Nop())
	assert.Equal(t, Authenticated, b.Run(context.Background()))

	st := sess.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "tok", st.Token)
	assert.Equal(t, "a@b.com", st.Email)
	assert.Equal(t, "u1", st.UserID)

	id, err := backend.Get(sessionstore.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestRun_FallsBackToStoredUserID(t *testing.T) {
	sess, _ := seededSession(t, "tok", "old@b.com", "stored-id")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return &api.User{Email: "new@b.com"}, nil
	}}

	require.Equal(t, Authenticated, New(sess, verifier, zerolog.Nop()).Run(context.Background()))
	assert.Equal(t, "stored-id", sess.State().UserID)
	assert.Equal(t, "new@b.com", sess.State().Email, "verified email wins")
}

func TestRun_RejectedTokenLogsOut(t *testing.T) {
	tests := map[string]error{
		"unauthorized": &api.APIError{StatusCode: http.StatusUnauthorized},
		"malformed":    api.ErrMalformedResponse,
		"server error": &api.APIError{StatusCode: http.StatusBadGateway},
		"network":      &api.TransportError{Op: "GET /verify", Err: errors.New("connection refused")},
	}
	for name, verifyErr := range tests {
		t.Run(name, func(t *testing.T) {
			sess, backend := seededSession(t, "tok", "a@b.com", "u1")
			verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) { return nil, verifyErr }}

			b := New(sess, verifier, zerolog.Nop())
			assert.Equal(t, Unauthenticated, b.Run(context.Background()))
			assert.Equal(t, int32(1), verifier.calls.Load())

			assert.Equal(t, session.State{}, sess.State())
			_, err := backend.Get(sessionstore.KeyToken)
			assert.ErrorIs(t, err, sessionstore.ErrNotFound, "fail-closed removes the stored token")
		})
	}
}

func TestRun_AgainstServer401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	}))
	defer server.Close()

	sess, backend := seededSession(t, "tok", "a@b.com", "u1")
	store := sessionstore.New(backend, zerolog.Nop())
	client := api.New(server.URL, api.TokenFunc(store.Token))

	assert.Equal(t, Unauthenticated, New(sess, client, zerolog.Nop()).Run(context.Background()))
	_, err := backend.Get(sessionstore.KeyToken)
	assert.ErrorIs(t, err, sessionstore.ErrNotFound)
}

func TestRun_StaysCheckingUntilSettled(t *testing.T) {
	sess, backend := seededSession(t, "tok", "a@b.com", "u1")
	started := make(chan struct{})
	verifier := &fakeVerifier{fn: func(ctx context.Context) (*api.User, error) {
		close(started)
		<-ctx.Done()
		return nil, &api.TransportError{Op: "GET /verify", Err: ctx.Err()}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	b := New(sess, verifier, zerolog.Nop())
	b.Start(ctx)

	<-started
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Checking, b.Phase())
	select {
	case <-b.Done():
		t.Fatal("bootstrap finished while verification was still in flight")
	default:
	}

	cancel()
	phase, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, phase)

	// cancellation says nothing about the token, so it stays stored
	tok, err := backend.Get(sessionstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestRun_LogoutDuringVerificationWins(t *testing.T) {
	sess, _ := seededSession(t, "tok", "a@b.com", "u1")
	started := make(chan struct{})
	release := make(chan struct{})
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		close(started)
		<-release
		return &api.User{ID: "u1", Email: "a@b.com"}, nil
	}}

	b := New(sess, verifier, zerolog.Nop())
	b.Start(context.Background())

	<-started
	sess.Logout()
	close(release)

	phase, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, phase)
	assert.False(t, sess.IsAuthenticated(), "late success must not resurrect the session")
	assert.Empty(t, sess.State().Token)
}

func TestRun_RetainOnTransient(t *testing.T) {
	sess, backend := seededSession(t, "tok", "a@b.com", "u1")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return nil, &api.APIError{StatusCode: http.StatusServiceUnavailable}
	}}

	b := New(sess, verifier, zerolog.Nop(),
		WithClassifier(RetainOnTransient),
		WithRetries(2, time.Millisecond),
	)
	assert.Equal(t, Authenticated, b.Run(context.Background()))
	assert.Equal(t, int32(3), verifier.calls.Load())

	st := sess.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "a@b.com", st.Email)
	tok, err := backend.Get(sessionstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestRun_RetainOnTransientRecovers(t *testing.T) {
	sess, _ := seededSession(t, "tok", "a@b.com", "")
	verifier := &fakeVerifier{}
	verifier.fn = func(context.Context) (*api.User, error) {
		if verifier.calls.Load() == 1 {
			return nil, &api.TransportError{Op: "GET /verify", Err: errors.New("reset")}
		}
		return &api.User{ID: "u9", Email: "a@b.com"}, nil
	}

	b := New(sess, verifier, zerolog.Nop(), WithClassifier(RetainOnTransient), WithRetries(3, 0))
	assert.Equal(t, Authenticated, b.Run(context.Background()))
	assert.Equal(t, int32(2), verifier.calls.Load())
	assert.Equal(t, "u9", sess.State().UserID)
}

func TestRun_RetainOnTransientStillRejects401(t *testing.T) {
	sess, _ := seededSession(t, "tok", "a@b.com", "u1")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return nil, &api.APIError{StatusCode: http.StatusUnauthorized}
	}}

	b := New(sess, verifier, zerolog.Nop(), WithClassifier(RetainOnTransient), WithRetries(3, 0))
	assert.Equal(t, Unauthenticated, b.Run(context.Background()))
	assert.Equal(t, int32(1), verifier.calls.Load())
	assert.Empty(t, sess.State().Token)
}

func TestRun_RetainWithoutStoredEmailLogsOut(t *testing.T) {
	sess, _ := seededSession(t, "tok", "", "")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return nil, &api.TransportError{Op: "GET /verify", Err: errors.New("down")}
	}}

	b := New(sess, verifier, zerolog.Nop(), WithClassifier(RetainOnTransient), WithRetries(0, 0))
	assert.Equal(t, Unauthenticated, b.Run(context.Background()))
	assert.Empty(t, sess.State().Token)
}

func TestRun_OnlyOnce(t *testing.T) {
	sess, _ := seededSession(t, "tok", "a@b.com", "u1")
	verifier := &fakeVerifier{fn: func(context.Context) (*api.User, error) {
		return &api.User{ID: "u1", Email: "a@b.com"}, nil
	}}

	b := New(sess, verifier, zerolog.Nop())
	assert.Equal(t, Authenticated, b.Run(context.Background()))
	assert.Equal(t, Authenticated, b.Run(context.Background()))
	assert.Equal(t, int32(1), verifier.calls.Load())
}

func TestWait_ContextDone(t *testing.T) {
	sess, _ := seededSession(t, "", "", "")
	b := New(sess, &fakeVerifier{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	phase, err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Checking, phase)
}

func TestClassifiers(t *testing.T) {
	unauthorized := &api.APIError{StatusCode: http.StatusUnauthorized}
	unavailable := &api.APIError{StatusCode: http.StatusServiceUnavailable}
	network := &api.TransportError{Op: "GET /", Err: errors.New("refused")}

	assert.Equal(t, VerdictInvalid, FailClosed(unavailable))
	assert.Equal(t, VerdictInvalid, FailClosed(network))

	assert.Equal(t, VerdictInvalid, RetainOnTransient(unauthorized))
	assert.Equal(t, VerdictInvalid, RetainOnTransient(api.ErrMalformedResponse))
	assert.Equal(t, VerdictTransient, RetainOnTransient(unavailable))
	assert.Equal(t, VerdictTransient, RetainOnTransient(network))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "checking", Checking.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
