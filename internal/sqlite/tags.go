package sqlite

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// tagAssociation is one item_tags row joined to its tag name.
type tagAssociation struct {
	ItemID  int64
	TagID   int64
	TagName string
}

// ListTags returns every tag ordered by id.
func (b *Backend) ListTags(ctx context.Context) ([]types.Tag, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT id, name FROM tags ORDER BY id ASC")
	if err != nil {
		return nil, storeErr("querying tags", err)
	}
	defer rows.Close()

	tags := []types.Tag{}
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, storeErr("scanning tag", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating tags", err)
	}
	return tags, nil
}

// fetchTagAssociations reads the tag associations of every item, or of the
// items matching tagIDs when it is non-empty.
func fetchTagAssociations(ctx context.Context, q queryer, tagIDs []int64) ([]tagAssociation, error) {
	query := `SELECT it.item_id, t.id, t.name
FROM item_tags it
JOIN tags t ON t.id = it.tag_id`
	var args []any
	if len(tagIDs) > 0 {
		clause, tagArgs := taggedItemsClause("it.item_id", tagIDs)
		query += "\nWHERE " + clause
		args = tagArgs
	}
	query += "\nORDER BY it.item_id ASC, t.id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("querying tag associations", err)
	}
	defer rows.Close()

	var assocs []tagAssociation
	for rows.Next() {
		var a tagAssociation
		if err := rows.Scan(&a.ItemID, &a.TagID, &a.TagName); err != nil {
			return nil, storeErr("scanning tag association", err)
		}
		assocs = append(assocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating tag associations", err)
	}
	return assocs, nil
}

// assembleSummaries attaches to each item the comma-joined names of its
// tags, ordered by tag id. Items without tags keep a nil Tags field, and
// associations of items not in stats are ignored. The result preserves the
// order of stats and is never nil.
func assembleSummaries(stats []types.ItemStats, assocs []tagAssociation) []types.ItemSummary {
	byItem := make(map[int64][]tagAssociation)
	for _, a := range assocs {
		byItem[a.ItemID] = append(byItem[a.ItemID], a)
	}

	summaries := make([]types.ItemSummary, 0, len(stats))
	for _, s := range stats {
		summary := types.ItemSummary{ItemStats: s}
		if tagged := byItem[s.ID]; len(tagged) > 0 {
			joined := joinTagNames(tagged)
			summary.Tags = &joined
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// joinTagNames orders associations by tag id and joins their names.
func joinTagNames(assocs []tagAssociation) string {
	sorted := slices.Clone(assocs)
	slices.SortStableFunc(sorted, func(a, b tagAssociation) int {
		return cmp.Compare(a.TagID, b.TagID)
	})

	names := make([]string, len(sorted))
	for i, a := range sorted {
		names[i] = a.TagName
	}
	return strings.Join(names, ",")
}
