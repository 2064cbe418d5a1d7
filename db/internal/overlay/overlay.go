// Package overlay implements the buffered write transaction shared by the
// backends without native read-your-writes batches.
package overlay

import (
	"bytes"
	"maps"
	"slices"
	"strings"

	"github.com/vocdoni/davinci-ballotbox/db"
)

// Tx buffers writes over a base reader. Backends embed it and implement
// Commit by writing Pending and Deleted.
type Tx struct {
	base    db.Reader
	Pending map[string][]byte
	Deleted map[string]struct{}
}

// New returns an empty overlay on base.
func New(base db.Reader) Tx {
	return Tx{
		base:    base,
		Pending: make(map[string][]byte),
		Deleted: make(map[string]struct{}),
	}
}

// Get returns the pending value of key, or the base value.
func (tx *Tx) Get(key []byte) ([]byte, error) {
	if v, ok := tx.Pending[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	if _, ok := tx.Deleted[string(key)]; ok {
		return nil, db.ErrKeyNotFound
	}
	return tx.base.Get(key)
}

// Iterate merges the base keys with the pending writes.
func (tx *Tx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.Empty() {
		return tx.base.Iterate(prefix, callback)
	}
	view := make(map[string][]byte)
	if err := tx.base.Iterate(prefix, func(k, v []byte) bool {
		view[string(k)] = bytes.Clone(v)
		return true
	}); err != nil {
		return err
	}
	for k := range tx.Deleted {
		delete(view, k)
	}
	for k, v := range tx.Pending {
		if strings.HasPrefix(k, string(prefix)) {
			view[k] = v
		}
	}
	for _, k := range slices.Sorted(maps.Keys(view)) {
		if !callback([]byte(k), view[k]) {
			break
		}
	}
	return nil
}

// Set buffers a write.
func (tx *Tx) Set(key, value []byte) error {
	delete(tx.Deleted, string(key))
	tx.Pending[string(key)] = bytes.Clone(value)
	return nil
}

// Delete buffers a delete.
func (tx *Tx) Delete(key []byte) error {
	delete(tx.Pending, string(key))
	tx.Deleted[string(key)] = struct{}{}
	return nil
}

// Empty reports whether nothing is buffered.
func (tx *Tx) Empty() bool {
	return len(tx.Pending) == 0 && len(tx.Deleted) == 0
}

// Discard drops the buffered writes.
func (tx *Tx) Discard() {
	clear(tx.Pending)
	clear(tx.Deleted)
}
