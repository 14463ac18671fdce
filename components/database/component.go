package database

import (
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/kvstore"
)

func init() {
	Component = &app.Component{
		Name:    "Database",
		Provide: provide,
	}
}

var Component *app.Component

// Provider returns the backing store for one chain's ledger. Every chain
// gets its own isolated store.
type Provider func(chainID string) kvstore.KVStore

func provide(c *dig.Container) error {
	return c.Provide(func() Provider {
		return newMapDB
	})
}
