// internal/common/database/badger.go
package database

import (
	"fmt"

	"carepulse/internal/common/config"

	"github.com/dgraph-io/badger/v4"
)

// BadgerClient wraps an embedded badger database
type BadgerClient struct {
	DB *badger.DB
}

// NewBadger opens the embedded store at cfg.Path, or purely in memory when configured.
func NewBadger(cfg config.BadgerConfig) (*BadgerClient, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &BadgerClient{DB: db}, nil
}

// Close closes the badger database
func (c *BadgerClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
