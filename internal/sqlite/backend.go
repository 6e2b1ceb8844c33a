// Package sqlite implements the market store on a single SQLite database
// file. It owns the schema, seeds the tag vocabulary, computes the price
// aggregates and performs the item and price inserts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// connPragmas are applied by the driver to every connection it opens.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// dsn appends connPragmas to path as _pragma query parameters.
func dsn(path string) string {
	q := url.Values{}
	for _, pragma := range connPragmas {
		q.Add("_pragma", pragma)
	}
	return path + "?" + q.Encode()
}

// Compile-time interface check: Backend must implement Market.
var _ types.Market = (*Backend)(nil)

// Backend implements the Market interface on SQLite.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and a single connection keeps per-connection pragmas and in-memory
// databases consistent across operations.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the database, ensures the schema and seeds the tag
// vocabulary. Any failure leaves the backend detached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.DBPath != types.MemoryDBPath {
		if err := os.MkdirAll(filepath.Dir(config.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn(config.DBPath))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if config.DBPath != types.MemoryDBPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return fmt.Errorf("enabling WAL: %w", err)
		}
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	if err := seedTags(ctx, db, config.SeedTags()); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	return err
}

// Ping verifies that the database answers queries.
func (b *Backend) Ping(ctx context.Context) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return storeErr("pinging database", err)
	}
	return nil
}

// handle returns the open database or ErrStoreDetached.
func (b *Backend) handle() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}
