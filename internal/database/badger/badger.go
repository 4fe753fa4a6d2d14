// Package badger implements database.KV on top of an embedded badger database.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/database"
)

// Config configures the badger store.
type Config struct {
	Path     string // directory for badger files, ignored in memory mode
	InMemory bool
	Logger   logrus.FieldLogger
}

// Store is a database.KV backed by badger.
type Store struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// Open opens (or creates) the badger database.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger path not set")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, log: cfg.Logger}, nil
}

// Get returns the value under key, database.ErrNotFound if it is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return blob, nil
}

// Set writes blob under key in a single transaction.
func (s *Store) Set(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.log.WithField("key", key).WithField("bytes", len(blob)).Debug("Stored blob")
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ database.KV = (*Store)(nil)
