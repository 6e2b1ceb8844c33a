package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL. Every statement is guarded so ensureSchema can run on each
// start against an existing database.
const (
	createItems = `CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    image_url TEXT
);`

	createPrices = `CREATE TABLE IF NOT EXISTS prices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL,
    price INTEGER NOT NULL CHECK (typeof(price) = 'integer' AND price > 0),
    created_at TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
        CHECK (julianday(created_at) IS NOT NULL),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);`

	createTags = `CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);`

	createItemTags = `CREATE TABLE IF NOT EXISTS item_tags (
    item_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (item_id, tag_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);`
)

// Index DDL for the aggregation and filter queries.
const (
	idxPricesItemCreated = `CREATE INDEX IF NOT EXISTS idx_prices_item_created ON prices(item_id, created_at);`
	idxItemTagsTag       = `CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createItems,
	createPrices,
	createTags,
	createItemTags,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxPricesItemCreated,
	idxItemTagsTag,
}

// ensureSchema creates the four relations and their indexes if absent.
// The statements run in one transaction so a failure leaves no partial schema.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range schemaDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}
