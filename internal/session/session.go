// Package session holds the in-memory authentication state of the client.
//
// A Session is the single source of truth for "is this user logged in". It is
// constructed once per process and passed to everything that needs it. Identity
// changes (Login, Logout) are mirrored into the persisted store; the pending
// OTP fields only live in memory.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/allone-dev/allone/internal/sessionstore"
)

// ErrInvalidIdentity is returned by Login when the identity has no token or email
var ErrInvalidIdentity = errors.New("session: identity requires a token and an email")

// Store is the persisted key-value storage the session mirrors into
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Identity is the payload of a successful login
type Identity struct {
	Email  string
	Token  string
	UserID string
}

// State is a snapshot of the session
type State struct {
	IsAuthenticated bool
	Email           string
	UserID          string
	Token           string

	// PendingVerificationEmail is set after signup until the OTP is verified
	PendingVerificationEmail string
	// PendingPasswordResetEmail is set after a reset OTP was requested
	PendingPasswordResetEmail string
}

// Identity returns the identity fields of s
func (s State) Identity() Identity {
	return Identity{Email: s.Email, Token: s.Token, UserID: s.UserID}
}

// Session is the process-wide session state container. Safe for concurrent use.
type Session struct {
	store Store

	mu         sync.RWMutex
	state      State
	generation uint64

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int
}

// New creates a session seeded from whatever identity the store holds.
// The session starts unauthenticated until bootstrap verifies the token.
func New(store Store) *Session {
	s := &Session{
		store:       store,
		subscribers: make(map[int]func(State)),
	}

	s.state.Token, _ = store.Get(sessionstore.KeyToken)
	s.state.Email, _ = store.Get(sessionstore.KeyUserEmail)
	s.state.UserID, _ = store.Get(sessionstore.KeyUserID)

	return s
}

// State returns a snapshot of the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session is currently authenticated
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Generation returns the logout counter. Work started under one generation
// must not authenticate the session once it has changed.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Login replaces the identity with id, marks the session authenticated and
// clears any pending signup verification.
func (s *Session) Login(id Identity) error {
	_, err := s.login(id, 0, false)
	return err
}

// LoginIfGeneration applies Login only if no Logout happened since gen was
// read. It reports whether the login was applied.
func (s *Session) LoginIfGeneration(gen uint64, id Identity) (bool, error) {
	return s.login(id, gen, true)
}

func (s *Session) login(id Identity, gen uint64, checkGen bool) (bool, error) {
	id.Token = strings.TrimSpace(id.Token)
	if id.Token == "" || id.Email == "" {
		return false, ErrInvalidIdentity
	}

	s.mu.Lock()
	if checkGen && gen != s.generation {
		s.mu.Unlock()
		return false, nil
	}

	s.state.IsAuthenticated = true
	s.state.Email = id.Email
	s.state.Token = id.Token
	s.state.UserID = id.UserID
	s.state.PendingVerificationEmail = ""

	s.store.Set(sessionstore.KeyToken, id.Token)
	s.store.Set(sessionstore.KeyUserEmail, id.Email)
	if id.UserID != "" {
		s.store.Set(sessionstore.KeyUserID, id.UserID)
	} else {
		s.store.Remove(sessionstore.KeyUserID)
	}

	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
	return true, nil
}

// Logout clears the identity, erases the persisted keys and invalidates any
// in-flight verification. Calling it repeatedly is harmless.
func (s *Session) Logout() {
	s.mu.Lock()
	s.state.IsAuthenticated = false
	s.state.Email = ""
	s.state.Token = ""
	s.state.UserID = ""
	s.state.PendingVerificationEmail = ""
	s.generation++

	s.store.Remove(sessionstore.KeyToken)
	s.store.Remove(sessionstore.KeyUserEmail)
	s.store.Remove(sessionstore.KeyUserID)

	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// SetPendingVerification records the email awaiting signup OTP verification
func (s *Session) SetPendingVerification(email string) {
	s.update(func(st *State) { st.PendingVerificationEmail = email })
}

// ClearPendingVerification cancels a pending signup verification
func (s *Session) ClearPendingVerification() {
	s.update(func(st *State) { st.PendingVerificationEmail = "" })
}

// SetPendingPasswordReset records the email awaiting a password reset OTP
func (s *Session) SetPendingPasswordReset(email string) {
	s.update(func(st *State) { st.PendingPasswordResetEmail = email })
}

// ClearPendingPasswordReset cancels or completes a password reset flow
func (s *Session) ClearPendingPasswordReset() {
	s.update(func(st *State) { st.PendingPasswordResetEmail = "" })
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// Subscribe registers fn to be called with the new state after every change.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
