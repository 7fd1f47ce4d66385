package sessionstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "allone-cli"

// KeyringBackend persists session keys in the OS keychain/credential manager.
// Keys are scoped by namespace so sessions for different API servers never mix.
type KeyringBackend struct {
	namespace string
}

// NewKeyringBackend returns a keyring backend scoped to namespace (usually the API base URL)
func NewKeyringBackend(namespace string) *KeyringBackend {
	return &KeyringBackend{namespace: namespace}
}

// keyringKey returns a unique keyring entry name for key
func (k *KeyringBackend) keyringKey(key string) string {
	if k.namespace == "" {
		return key
	}
	return fmt.Sprintf("%s-%s", key, k.namespace)
}

func (k *KeyringBackend) Get(key string) (string, error) {
	value, err := keyring.Get(keyringService, k.keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return value, nil
}

func (k *KeyringBackend) Set(key, value string) error {
	if err := keyring.Set(keyringService, k.keyringKey(key), value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (k *KeyringBackend) Delete(key string) error {
	if err := keyring.Delete(keyringService, k.keyringKey(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}

func (k *KeyringBackend) Close() error {
	return nil
}
