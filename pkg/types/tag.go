package types

import (
	"strconv"
	"strings"
)

// Tag is a category label attachable to many items.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DefaultTags is the vocabulary seeded on first attach. Its order fixes the
// tag ids and therefore the display order.
var DefaultTags = []string{
	"weapon",
	"armor",
	"accessory",
	"consumable",
	"material",
	"quest",
	"rare",
}

// ParseTagIDs parses a comma-joined list of tag ids. Blank, non-numeric and
// non-positive entries are dropped; duplicates keep their first position.
func ParseTagIDs(raw string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
