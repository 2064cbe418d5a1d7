// Package inmemory implements an ephemeral db.Database, used for tests and
// for servers run without a data directory.
package inmemory

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/vocdoni/davinci-ballotbox/db"
)

// record is a stored value and the commit sequence that last touched it. A
// deleted key keeps its record so that conflicting deletes are detected.
type record struct {
	value []byte
	seq   uint64
	gone  bool
}

// DB is an in-memory db.Database with optimistic transactions: a commit
// fails with db.ErrConflict if any key the transaction touched was committed
// by someone else after the transaction started.
type DB struct {
	mu      sync.RWMutex
	records map[string]record
	seq     uint64
}

var _ db.Database = (*DB)(nil)

// New returns an empty database. Options are ignored.
func New(_ db.Options) (*DB, error) {
	return &DB{records: make(map[string]record)}, nil
}

// Close implements db.Database.
func (d *DB) Close() error { return nil }

// Compact implements db.Database.
func (d *DB) Compact() error { return nil }

// Get implements db.Database.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[string(key)]
	if !ok || r.gone {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(r.value), nil
}

// Iterate implements db.Database.
func (d *DB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	view, _ := d.snapshot(string(prefix))
	walk(view, callback)
	return nil
}

// snapshot copies the live values under prefix, with their sequences.
func (d *DB) snapshot(prefix string) (map[string][]byte, map[string]uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	view := make(map[string][]byte)
	seqs := make(map[string]uint64)
	for k, r := range d.records {
		if r.gone || !strings.HasPrefix(k, prefix) {
			continue
		}
		view[k] = bytes.Clone(r.value)
		seqs[k] = r.seq
	}
	return view, seqs
}

func (d *DB) seqOf(key string) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records[key].seq
}

// WriteTx implements db.Database.
func (d *DB) WriteTx() db.WriteTx {
	d.mu.RLock()
	start := d.seq
	d.mu.RUnlock()
	return &WriteTx{
		db:      d,
		start:   start,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
		seen:    make(map[string]uint64),
	}
}

// WriteTx buffers writes until Commit.
type WriteTx struct {
	db      *DB
	start   uint64
	pending map[string][]byte
	deleted map[string]struct{}
	seen    map[string]uint64
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) observe(key string) {
	if _, ok := tx.seen[key]; !ok {
		tx.seen[key] = tx.db.seqOf(key)
	}
}

// Get implements db.WriteTx.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := tx.pending[k]; ok {
		return bytes.Clone(v), nil
	}
	if _, ok := tx.deleted[k]; ok {
		return nil, db.ErrKeyNotFound
	}
	tx.observe(k)
	return tx.db.Get(key)
}

// Iterate implements db.WriteTx. Pending writes are visible.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	view, seqs := tx.db.snapshot(string(prefix))
	for k, s := range seqs {
		if _, ok := tx.seen[k]; !ok {
			tx.seen[k] = s
		}
	}
	for k := range tx.deleted {
		delete(view, k)
	}
	for k, v := range tx.pending {
		if strings.HasPrefix(k, string(prefix)) {
			view[k] = bytes.Clone(v)
		}
	}
	walk(view, callback)
	return nil
}

// Set implements db.WriteTx.
func (tx *WriteTx) Set(key, value []byte) error {
	k := string(key)
	tx.observe(k)
	delete(tx.deleted, k)
	tx.pending[k] = bytes.Clone(value)
	return nil
}

// Delete implements db.WriteTx.
func (tx *WriteTx) Delete(key []byte) error {
	k := string(key)
	tx.observe(k)
	delete(tx.pending, k)
	tx.deleted[k] = struct{}{}
	return nil
}

// Commit implements db.WriteTx.
func (tx *WriteTx) Commit() error {
	if tx.done {
		return errors.New("inmemory: transaction already finished")
	}
	d := tx.db
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, s := range tx.seen {
		if cur := d.records[k].seq; cur != s || cur > tx.start {
			return db.ErrConflict
		}
	}
	for k := range tx.deleted {
		d.seq++
		d.records[k] = record{seq: d.seq, gone: true}
	}
	for k, v := range tx.pending {
		d.seq++
		d.records[k] = record{value: v, seq: d.seq}
	}
	tx.done = true
	return nil
}

// Discard implements db.WriteTx.
func (tx *WriteTx) Discard() {
	clear(tx.pending)
	clear(tx.deleted)
	clear(tx.seen)
	tx.done = true
}

// walk calls callback over view in ascending key order.
func walk(view map[string][]byte, callback func(key, value []byte) bool) {
	for _, k := range slices.Sorted(maps.Keys(view)) {
		if !callback([]byte(k), view[k]) {
			return
		}
	}
}
