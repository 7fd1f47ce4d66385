package sessionstore

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/allone-dev/allone/internal/config"
)

// OpenBackend opens the backend named by cfg.Backend.
// namespace scopes keyring entries (the API base URL).
func OpenBackend(cfg config.StoreConfig, namespace string) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(cfg.Path)
	case "keyring":
		return NewKeyringBackend(namespace), nil
	case "sqlite":
		return NewSQLiteBackend(cfg.Path)
	case "leveldb":
		return NewLevelDBBackend(cfg.Path)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown session store backend %q (expected file, keyring, sqlite, leveldb or memory)", cfg.Backend)
	}
}

// Open returns a Store for cfg. A backend that cannot be opened is logged
// and replaced by unavailable storage so the client still starts, signed out.
func Open(cfg config.StoreConfig, namespace string, log zerolog.Logger) *Store {
	backend, err := OpenBackend(cfg, namespace)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Backend).Msg("Session storage unavailable - sessions will not persist")
		backend = unavailableBackend{}
	}
	return New(backend, log)
}
