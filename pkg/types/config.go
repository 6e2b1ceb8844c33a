package types

import "errors"

// Config holds the parameters for Market.Attach.
type Config struct {
	// DBPath is the SQLite database file. ":memory:" opens a private
	// in-memory database restricted to a single connection.
	DBPath string `json:"db_path" yaml:"db_path"`

	// Tags is the seed vocabulary inserted on attach. Nil means DefaultTags.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// MemoryDBPath selects an in-memory database.
const MemoryDBPath = ":memory:"

// Config validation errors.
var (
	ErrDBPathEmpty = errors.New("database path must not be empty")
	ErrTagEmpty    = errors.New("seed tag names must not be blank")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return ErrDBPathEmpty
	}
	for _, name := range c.Tags {
		if isBlank(name) {
			return ErrTagEmpty
		}
	}
	return nil
}

// SeedTags returns the configured vocabulary, or DefaultTags when none is set.
func (c Config) SeedTags() []string {
	if c.Tags == nil {
		return DefaultTags
	}
	return c.Tags
}
