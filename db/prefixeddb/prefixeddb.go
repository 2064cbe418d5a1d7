// Package prefixeddb wraps a database so that every key is transparently
// prefixed, giving each component its own namespace.
package prefixeddb

import (
	"github.com/vocdoni/davinci-ballotbox/db"
)

func prefixKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixedReader is a db.Reader restricted to a prefix.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns a reader over the keys of r starting with prefix.
func NewPrefixedReader(r db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: prefix, reader: r}
}

// Get implements db.Reader.
func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixKey(r.prefix, key))
}

// Iterate implements db.Reader. The callback receives keys without the
// prefix.
func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	n := len(r.prefix)
	return r.reader.Iterate(prefixKey(r.prefix, prefix), func(k, v []byte) bool {
		return callback(k[n:], v)
	})
}

// PrefixedWriteTx is a db.WriteTx restricted to a prefix.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx wraps tx so that every key is prefixed.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{prefix: prefix, tx: tx}
}

// Get implements db.WriteTx.
func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixKey(t.prefix, key))
}

// Iterate implements db.WriteTx.
func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	n := len(t.prefix)
	return t.tx.Iterate(prefixKey(t.prefix, prefix), func(k, v []byte) bool {
		return callback(k[n:], v)
	})
}

// Set implements db.WriteTx.
func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixKey(t.prefix, key), value)
}

// Delete implements db.WriteTx.
func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixKey(t.prefix, key))
}

// Commit implements db.WriteTx.
func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

// Discard implements db.WriteTx.
func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}

// PrefixedDatabase is a db.Database restricted to a prefix.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a database over the keys of d starting with
// prefix.
func NewPrefixedDatabase(d db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{prefix: prefix, db: d}
}

// Get implements db.Database.
func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixKey(d.prefix, key))
}

// Iterate implements db.Database.
func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return NewPrefixedReader(d.db, d.prefix).Iterate(prefix, callback)
}

// WriteTx implements db.Database.
func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

// Compact implements db.Database.
func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}
