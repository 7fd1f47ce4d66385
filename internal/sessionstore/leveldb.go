package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const leveldbDirName = "session.ldb"

// LevelDBBackend stores session keys in a LevelDB directory
type LevelDBBackend struct {
	db *leveldb.DB
}

// NewLevelDBBackend opens the database directory at path, or the default
// location when path is empty. A corrupted database is recovered.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, leveldbDirName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := leveldb.OpenFile(path, &opt.Options{Strict: opt.DefaultStrict})
	if err != nil {
		if lerrors.IsCorrupted(err) {
			db, err = leveldb.RecoverFile(path, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
		}
	}

	return &LevelDBBackend{db: db}, nil
}

func (l *LevelDBBackend) Get(key string) (string, error) {
	data, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return string(data), nil
}

func (l *LevelDBBackend) Set(key, value string) error {
	if err := l.db.Put([]byte(key), []byte(value), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (l *LevelDBBackend) Delete(key string) error {
	if err := l.db.Delete([]byte(key), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}
