package types

import (
	"context"
	"errors"
)

// Market is the store behind the price tracker. Reads never mutate state;
// each mutation is a single atomic write.
type Market interface {
	// Attach opens the store described by config, creates missing tables and
	// seeds the tag vocabulary. Returns ErrAlreadyAttached if called twice.
	Attach(config Config) error

	// Detach releases the store. Idempotent.
	Detach() error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// ListTags returns every tag ordered by id.
	ListTags(ctx context.Context) ([]Tag, error)

	// ListItems returns price statistics for every named item, ordered by
	// id. A non-empty filter keeps items tagged with any of its tag ids.
	ListItems(ctx context.Context, filter ItemFilter) ([]ItemSummary, error)

	// GetItemDetail returns statistics and newest-first price history for
	// one item. Returns ErrNotFound if the item does not exist.
	GetItemDetail(ctx context.Context, itemID int64) (*ItemDetail, error)

	// AddItem creates an item and its tag associations and returns its id.
	// Returns ErrValidation for a blank name and ErrConflict if the name is
	// taken.
	AddItem(ctx context.Context, in AddItemInput) (int64, error)

	// AddPrice records one price observation and returns its id.
	// Returns ErrValidation for a missing item id or a non-positive price.
	AddPrice(ctx context.Context, in AddPriceInput) (int64, error)
}

// Operation errors. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store failure")
)

// Lifecycle errors.
var (
	ErrStoreDetached   = errors.New("market store is detached")
	ErrAlreadyAttached = errors.New("market store is already attached")
)
