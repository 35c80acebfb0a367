// Package badger manages the shared BadgerDB connection backing the
// async job runner's in-flight bookkeeping (internal/jobstate) and the
// batch audit trail (internal/auditlog). The Parser Repository itself is
// the mandatory filesystem store (internal/repository); Badger is wired
// only for the supplementary concerns beside it.
package badger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// DB manages the Badger database connection.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open creates (or opens) a Badger database at path, adapted from the
// teacher's BadgerDB connection wiring.
func Open(path string, logger arbor.ILogger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", path).Msg("opening badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("badger database initialized")

	return &DB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store.
func (d *DB) Store() *badgerhold.Store {
	return d.store
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
