// Package ledger is the per-chain storage layer. Each chain owns a single
// key-value store; a View stages all mutations of one processing step and
// commits them as a single batch, so a failed operation or message handler
// leaves no partial state behind.
package ledger

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/pkg/errors"
)

type stagedEntry struct {
	value   []byte
	deleted bool
}

// View is a read-your-writes overlay over a chain's store. Reads consult
// staged mutations first and fall through to the store; Commit applies the
// staged mutations through a single batched write; Abort drops them.
//
// A View is bound to one sequentially executed processing step and is not
// safe for concurrent use.
type View struct {
	store  kvstore.KVStore
	staged map[string]stagedEntry
}

// NewView creates a staging view over the given chain store.
func NewView(store kvstore.KVStore) *View {
	return &View{
		store:  store,
		staged: make(map[string]stagedEntry),
	}
}

func (v *View) get(key []byte) ([]byte, bool, error) {
	if entry, ok := v.staged[string(key)]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		return entry.value, true, nil
	}

	value, err := v.store.Get(key)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func (v *View) set(key, value []byte) {
	v.staged[string(key)] = stagedEntry{value: value}
}

func (v *View) delete(key []byte) {
	v.staged[string(key)] = stagedEntry{deleted: true}
}

// iterate walks all live entries under prefix: store entries not overridden
// by the stage, then staged insertions. Iteration order is unspecified.
func (v *View) iterate(prefix []byte, consume func(key, value []byte) bool) error {
	stop := false
	if err := v.store.Iterate(prefix, func(key kvstore.Key, value kvstore.Value) bool {
		if _, overridden := v.staged[string(key)]; overridden {
			return true
		}
		if !consume(key, value) {
			stop = true
			return false
		}
		return true
	}); err != nil {
		return err
	}
	if stop {
		return nil
	}

	for key, entry := range v.staged {
		if entry.deleted || len(key) < len(prefix) || key[:len(prefix)] != string(prefix) {
			continue
		}
		if !consume([]byte(key), entry.value) {
			return nil
		}
	}

	return nil
}

// Commit atomically applies all staged mutations to the underlying store.
func (v *View) Commit() error {
	if len(v.staged) == 0 {
		return nil
	}

	batch, err := v.store.Batched()
	if err != nil {
		return errors.Wrap(err, "failed to open batched mutations")
	}

	for key, entry := range v.staged {
		if entry.deleted {
			err = batch.Delete([]byte(key))
		} else {
			err = batch.Set([]byte(key), entry.value)
		}
		if err != nil {
			batch.Cancel()
			return errors.Wrap(err, "failed to stage batched mutation")
		}
	}

	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit batched mutations")
	}

	v.staged = make(map[string]stagedEntry)

	return nil
}

// Abort drops all staged mutations.
func (v *View) Abort() {
	v.staged = make(map[string]stagedEntry)
}
