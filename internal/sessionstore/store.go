// Package sessionstore persists the session identity (token, user id, email)
// across process restarts.
//
// Storage failures never reach callers: a backend that cannot be read behaves
// as if the key were absent, and a backend that cannot be written drops the
// write. Both cases are logged.
package sessionstore

import (
	"errors"

	"github.com/rs/zerolog"
)

// Keys mirrored from the session state. Anything else is never persisted.
const (
	KeyToken     = "token"
	KeyUserID    = "userId"
	KeyUserEmail = "userEmail"
)

var (
	// ErrNotFound is returned by a Backend when the key has no value.
	ErrNotFound = errors.New("sessionstore: key not found")

	// ErrUnavailable is returned by a Backend that could not be opened.
	ErrUnavailable = errors.New("sessionstore: storage unavailable")
)

// Backend is a durable string key-value store.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Store wraps a Backend with the "never fail" contract used by the session.
type Store struct {
	backend Backend
	log     zerolog.Logger
}

// New wraps backend. A nil backend is treated as unavailable storage.
func New(backend Backend, log zerolog.Logger) *Store {
	if backend == nil {
		backend = unavailableBackend{}
	}
	return &Store{
		backend: backend,
		log:     log.With().Str("component", "sessionstore").Logger(),
	}
}

// Get returns the value for key and whether one was present.
func (s *Store) Get(key string) (string, bool) {
	value, err := s.backend.Get(key)
	if err != nil {
		s.logErr(err, key, "Failed to read session key")
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// Set stores value under key. An empty value removes the key.
func (s *Store) Set(key, value string) {
	if value == "" {
		s.Remove(key)
		return
	}
	if err := s.backend.Set(key, value); err != nil {
		s.logErr(err, key, "Failed to write session key")
	}
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) {
	if err := s.backend.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		s.logErr(err, key, "Failed to remove session key")
	}
}

// Token returns the persisted bearer token, or "" when none is stored.
func (s *Store) Token() string {
	token, _ := s.Get(KeyToken)
	return token
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) logErr(err error, key, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return
	case errors.Is(err, ErrUnavailable):
		s.log.Debug().Str("key", key).Msg(msg)
	default:
		s.log.Warn().Err(err).Str("key", key).Msg(msg)
	}
}

type unavailableBackend struct{}

func (unavailableBackend) Get(string) (string, error) { return "", ErrUnavailable }
func (unavailableBackend) Set(string, string) error   { return ErrUnavailable }
func (unavailableBackend) Delete(string) error        { return ErrUnavailable }
func (unavailableBackend) Close() error               { return nil }
