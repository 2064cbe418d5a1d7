// Package leveldb implements db.Database on top of syndtr/goleveldb.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/db/internal/overlay"
)

// LevelDB is a persistent db.Database.
type LevelDB struct {
	db *leveldb.DB
}

var _ db.Database = (*LevelDB)(nil)

// New opens or creates a leveldb database in opts.Path.
func New(opts db.Options) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(opts.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open leveldb: %w", err)
	}
	return &LevelDB{db: ldb}, nil
}

// Close implements db.Database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Compact implements db.Database.
func (l *LevelDB) Compact() error {
	return l.db.CompactRange(util.Range{})
}

// Get implements db.Database.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return v, err
}

// Iterate implements db.Database.
func (l *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// WriteTx implements db.Database. Writes are kept in memory and written as a
// single leveldb batch on Commit.
func (l *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{Tx: overlay.New(l), db: l}
}

// WriteTx overlays pending writes on the database.
type WriteTx struct {
	overlay.Tx
	db *LevelDB
}

var _ db.WriteTx = (*WriteTx)(nil)

// Commit implements db.WriteTx.
func (tx *WriteTx) Commit() error {
	batch := new(leveldb.Batch)
	for k := range tx.Deleted {
		batch.Delete([]byte(k))
	}
	for k, v := range tx.Pending {
		batch.Put([]byte(k), v)
	}
	if err := tx.db.db.Write(batch, nil); err != nil {
		return err
	}
	tx.Discard()
	return nil
}
