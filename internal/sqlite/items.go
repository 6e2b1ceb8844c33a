package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// itemStatsSelect aggregates every price observation of an item. The LEFT
// JOIN keeps items without observations; COUNT(p.id) is 0 for them and the
// other aggregates are NULL.
const itemStatsSelect = `SELECT
    i.id,
    i.name,
    i.image_url,
    AVG(p.price),
    MIN(p.price),
    MAX(p.price),
    COUNT(p.id)
FROM items i
LEFT JOIN prices p ON p.item_id = i.id`

// historySelect returns an item's observations newest first. Ties on the
// timestamp fall back to insertion order.
const historySelect = `SELECT
    price,
    strftime('%Y-%m-%dT%H:%M:%fZ', created_at)
FROM prices
WHERE item_id = ?
ORDER BY julianday(created_at) DESC, id DESC`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ListItems returns statistics and tag names for every named item, ordered
// by id. The item rows and their tag associations are read in one
// transaction and joined in memory.
func (b *Backend) ListItems(ctx context.Context, filter types.ItemFilter) ([]types.ItemSummary, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("beginning item listing", err)
	}
	defer tx.Rollback()

	stats, err := fetchItemStats(ctx, tx, filter.TagIDs)
	if err != nil {
		return nil, err
	}
	assocs, err := fetchTagAssociations(ctx, tx, filter.TagIDs)
	if err != nil {
		return nil, err
	}
	return assembleSummaries(stats, assocs), nil
}

// GetItemDetail reads an item's statistics and its price history
// concurrently and returns both, or the first error.
func (b *Backend) GetItemDetail(ctx context.Context, itemID int64) (*types.ItemDetail, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	var (
		details types.ItemStats
		history []types.PricePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := fetchOneItemStats(gctx, db, itemID)
		if err != nil {
			return err
		}
		details = s
		return nil
	})
	g.Go(func() error {
		h, err := fetchPriceHistory(gctx, db, itemID)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.ItemDetail{Details: details, History: history}, nil
}

// fetchItemStats runs the aggregation over all items with a non-blank name,
// restricted to items carrying any of tagIDs when it is non-empty.
func fetchItemStats(ctx context.Context, q queryer, tagIDs []int64) ([]types.ItemStats, error) {
	query := itemStatsSelect + "\nWHERE TRIM(i.name) != ''"
	var args []any
	if len(tagIDs) > 0 {
		clause, tagArgs := taggedItemsClause("i.id", tagIDs)
		query += "\n  AND " + clause
		args = append(args, tagArgs...)
	}
	query += "\nGROUP BY i.id\nORDER BY i.id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("querying item statistics", err)
	}
	defer rows.Close()

	var results []types.ItemStats
	for rows.Next() {
		s, err := hydrateItemStats(rows)
		if err != nil {
			return nil, storeErr("hydrating item statistics", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating item statistics", err)
	}
	return results, nil
}

// fetchOneItemStats returns the statistics row for one item, or
// ErrNotFound if no item has that id.
func fetchOneItemStats(ctx context.Context, q queryer, itemID int64) (types.ItemStats, error) {
	row := q.QueryRowContext(ctx, itemStatsSelect+"\nWHERE i.id = ?\nGROUP BY i.id", itemID)
	s, err := hydrateItemStats(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ItemStats{}, fmt.Errorf("item %d: %w", itemID, types.ErrNotFound)
		}
		return types.ItemStats{}, storeErr(fmt.Sprintf("getting item %d", itemID), err)
	}
	return s, nil
}

// fetchPriceHistory returns an item's observations newest first. The
// result is empty, never nil, for an item without observations.
func fetchPriceHistory(ctx context.Context, q queryer, itemID int64) ([]types.PricePoint, error) {
	rows, err := q.QueryContext(ctx, historySelect, itemID)
	if err != nil {
		return nil, storeErr("querying price history", err)
	}
	defer rows.Close()

	history := []types.PricePoint{}
	for rows.Next() {
		var (
			p       types.PricePoint
			created string
		)
		if err := rows.Scan(&p.Price, &created); err != nil {
			return nil, storeErr("scanning price history", err)
		}
		p.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, storeErr("parsing price timestamp", err)
		}
		history = append(history, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating price history", err)
	}
	return history, nil
}

// hydrateItemStats converts one aggregation row into types.ItemStats.
func hydrateItemStats(row rowScanner) (types.ItemStats, error) {
	var (
		s        types.ItemStats
		imageURL sql.NullString
		avg      sql.NullFloat64
		minPrice sql.NullInt64
		maxPrice sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Name, &imageURL, &avg, &minPrice, &maxPrice, &s.TradeCount); err != nil {
		return types.ItemStats{}, err
	}
	if imageURL.Valid {
		s.ImageURL = &imageURL.String
	}
	if avg.Valid {
		s.AveragePrice = &avg.Float64
	}
	if minPrice.Valid {
		s.MinPrice = &minPrice.Int64
	}
	if maxPrice.Valid {
		s.MaxPrice = &maxPrice.Int64
	}
	return s, nil
}

// taggedItemsClause returns "<column> IN (SELECT item_id FROM item_tags
// WHERE tag_id IN (?, ...))" with its arguments. The subquery keeps the
// match an OR over tag ids without duplicating item rows.
func taggedItemsClause(column string, tagIDs []int64) (string, []any) {
	placeholders := make([]string, len(tagIDs))
	args := make([]any, len(tagIDs))
	for i, id := range tagIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	clause := fmt.Sprintf(
		"%s IN (SELECT item_id FROM item_tags WHERE tag_id IN (%s))",
		column, strings.Join(placeholders, ", "),
	)
	return clause, args
}
