package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// seedTags inserts each name as a tag, skipping names already present. The
// names are inserted in order so a fresh database assigns ids in seed order.
func seedTags(ctx context.Context, db *sql.DB, names []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)")
	if err != nil {
		return fmt.Errorf("preparing tag seed: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, strings.TrimSpace(name)); err != nil {
			return fmt.Errorf("seeding tag %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}
