package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// AddItem validates the input, inserts the item and associates it with
// every existing tag in in.TagIDs. The item row and its associations are
// written in one transaction.
func (b *Backend) AddItem(ctx context.Context, in types.AddItemInput) (int64, error) {
	if err := in.Normalize(); err != nil {
		return 0, err
	}

	db, err := b.handle()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("beginning item insert", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO items (name, image_url) VALUES (?, ?)",
		in.Name, in.ImageURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("item %q: %w", in.Name, types.ErrConflict)
		}
		return 0, storeErr("inserting item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("reading item id", err)
	}

	// Unknown tag ids select no row and insert nothing.
	for _, tagID := range in.TagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO item_tags (item_id, tag_id) SELECT ?, id FROM tags WHERE id = ?",
			id, tagID,
		); err != nil {
			return 0, storeErr(fmt.Sprintf("tagging item %d with %d", id, tagID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("committing item", err)
	}
	return id, nil
}

// AddPrice validates the input and appends one price observation. The item
// reference is checked by the foreign key, not beforehand.
func (b *Backend) AddPrice(ctx context.Context, in types.AddPriceInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	db, err := b.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO prices (item_id, price) VALUES (?, ?)",
		in.ItemID, in.Price,
	)
	if err != nil {
		// Still a store failure; the message names the missing item.
		if isForeignKeyViolation(err) {
			return 0, storeErr(fmt.Sprintf("inserting price for unknown item %d", in.ItemID), err)
		}
		return 0, storeErr("inserting price", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("reading price id", err)
	}
	return id, nil
}
