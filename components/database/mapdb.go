package database

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

func newMapDB(chainID string) kvstore.KVStore {
	// One fresh in-memory store per chain; the chain id only matters to
	// callers that persist to disk.
	_ = chainID
	return mapdb.NewMapDB()
}
