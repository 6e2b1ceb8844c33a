package types

import (
	"fmt"
	"strings"
)

// ItemFilter restricts ListItems. An empty TagIDs matches every item.
type ItemFilter struct {
	TagIDs []int64
}

// AddItemInput is the request to register an item.
type AddItemInput struct {
	Name     string  // Required; surrounding whitespace is trimmed.
	ImageURL *string // Optional stored image path.
	TagIDs   []int64 // Unknown ids are ignored by the store.
}

// Normalize trims the name and drops duplicate or non-positive tag ids.
// Returns ErrValidation if the trimmed name is empty.
func (in *AddItemInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if in.ImageURL != nil && isBlank(*in.ImageURL) {
		in.ImageURL = nil
	}
	var ids []int64
	seen := make(map[int64]bool, len(in.TagIDs))
	for _, id := range in.TagIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	in.TagIDs = ids
	return nil
}

// AddPriceInput is the request to record a price observation.
type AddPriceInput struct {
	ItemID int64
	Price  int64
}

// Validate returns ErrValidation unless both fields are set and the price
// is strictly positive.
func (in AddPriceInput) Validate() error {
	if in.ItemID <= 0 {
		return fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be a positive integer", ErrValidation)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
