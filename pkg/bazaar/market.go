package bazaar

import (
	"github.com/mesh-intelligence/bazaar/internal/sqlite"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// NewMarket returns a detached SQLite-backed market. Call Attach before
// use and Detach when done.
func NewMarket() types.Market {
	return sqlite.NewBackend()
}

// Open returns a market attached to the store described by config.
//
// Example:
//
//	market, err := bazaar.Open(types.Config{DBPath: "market.db"})
//	if err != nil {
//	    return err
//	}
//	defer market.Detach()
func Open(config types.Config) (types.Market, error) {
	m := NewMarket()
	if err := m.Attach(config); err != nil {
		return nil, err
	}
	return m, nil
}
