// Package metadb opens any of the db.Database backends by type name.
package metadb

import (
	"fmt"
	"testing"

	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/db/inmemory"
	"github.com/vocdoni/davinci-ballotbox/db/leveldb"
	"github.com/vocdoni/davinci-ballotbox/db/mongodb"
	"github.com/vocdoni/davinci-ballotbox/db/pebbledb"
)

// New opens a database of the given type. For file backends path is the
// data directory; for mongodb it is the database name.
func New(typ, path string) (db.Database, error) {
	opts := db.Options{Path: path}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return leveldb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	case db.TypeMongo:
		return mongodb.New(opts)
	default:
		return nil, fmt.Errorf("unsupported database type %q", typ)
	}
}

// NewTest opens a pebble database in a temporary directory that is closed
// when the test finishes.
func NewTest(tb testing.TB) db.Database {
	tb.Helper()
	database, err := New(db.TypePebble, tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := database.Close(); err != nil {
			tb.Error(err)
		}
	})
	return database
}
