// Package db defines the key-value database interface shared by the storage
// backends. Keys are ordered byte strings; iteration visits keys in
// ascending order.
package db

import (
	"errors"
	"io"
)

// Database types understood by metadb.New.
const (
	TypePebble  = "pebble"
	TypeLevelDB = "leveldb"
	TypeInMem   = "inmem"
	TypeMongo   = "mongodb"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when a key read by the transaction
	// was written by another transaction in the meantime.
	ErrConflict = errors.New("transaction conflict")
)

// Options configures a database backend.
type Options struct {
	// Path is the data directory for file backends and the database name
	// for mongodb.
	Path string
}

// Reader is the read side of a database or transaction.
type Reader interface {
	// Get returns the value of key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix, in
	// ascending key order, until callback returns false. The slices passed
	// to callback are only valid during the call.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a write transaction. Its reads see its own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	// Discard releases the transaction. It is safe to call after Commit.
	Discard()
}

// Database is a key-value store with write transactions.
type Database interface {
	io.Closer
	Reader
	WriteTx() WriteTx
	Compact() error
}
