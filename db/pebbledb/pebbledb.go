// Package pebbledb implements db.Database on top of cockroachdb/pebble.
package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/vocdoni/davinci-ballotbox/db"
)

// PebbleDB is a persistent db.Database.
type PebbleDB struct {
	db *pebble.DB
}

var _ db.Database = (*PebbleDB)(nil)

// New opens or creates a pebble database in opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if err := os.MkdirAll(opts.Path, os.ModePerm); err != nil {
		return nil, err
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("could not open pebble db: %w", err)
	}
	return &PebbleDB{db: pdb}, nil
}

// Close implements db.Database.
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// Get implements db.Database.
func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	return get(p.db, key)
}

// Iterate implements db.Database.
func (p *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := p.db.NewIter(iterOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, callback)
}

// WriteTx implements db.Database.
func (p *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{batch: p.db.NewIndexedBatch()}
}

// Compact compacts the whole key range.
func (p *PebbleDB) Compact() error {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
	}
	if iter.Last() {
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	// the end key is exclusive
	return p.db.Compact(first, append(last, 0), true)
}

// WriteTx is a pebble indexed batch: its reads see its own writes.
type WriteTx struct {
	batch *pebble.Batch
}

var _ db.WriteTx = (*WriteTx)(nil)

// Get implements db.WriteTx.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	return get(tx.batch, key)
}

// Iterate implements db.WriteTx.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := tx.batch.NewIter(iterOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, callback)
}

// Set implements db.WriteTx.
func (tx *WriteTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

// Delete implements db.WriteTx.
func (tx *WriteTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}


// Commit implements db.WriteTx.
func (tx *WriteTx) Commit() error {
	return tx.batch.Commit(pebble.Sync)
}

// Discard implements db.WriteTx.
func (tx *WriteTx) Discard() {
	_ = tx.batch.Close()
}

type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(g getter, key []byte) ([]byte, error) {
	v, closer, err := g.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(v), nil
}

func iterate(iter *pebble.Iterator, callback func(key, value []byte) bool) (err error) {
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for valid := iter.First(); valid; valid = iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func iterOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return nil
	}
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	}
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
