// Package dbtest holds the conformance tests run against every db.Database
// backend.
package dbtest

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/db"
)

// TestWriteTx checks that a transaction sees its own writes and that nothing
// is visible outside it before Commit.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()

	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	dTx := database.WriteTx()
	defer dTx.Discard()
	c.Assert(dTx.Delete([]byte("a")), qt.IsNil)
	_, err = dTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(dTx.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix iteration order, early stop and pending writes.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := 9; i >= 0; i-- {
		c.Assert(wTx.Set(fmt.Appendf(nil, "p/%d", i), []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("q/0"), []byte{0xff}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	var keys []string
	c.Assert(database.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	for i, k := range keys {
		c.Assert(k, qt.Equals, fmt.Sprintf("p/%d", i))
	}

	count := 0
	c.Assert(database.Iterate([]byte("p/"), func(_, _ []byte) bool {
		count++
		return count < 3
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 3)

	// pending writes and deletes are visible to the transaction iterator
	tx := database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Delete([]byte("p/0")), qt.IsNil)
	c.Assert(tx.Set([]byte("p/99"), []byte{99}), qt.IsNil)
	keys = keys[:0]
	c.Assert(tx.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "p/1")
	c.Assert(keys[len(keys)-1], qt.Equals, "p/99")
}

// TestPrefixed checks that writes through a prefixed view stay inside it.
func TestPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	tx := prefixed.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Set([]byte("k"), []byte("v")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("v"))
	_, err = database.Get([]byte("k"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	var keys []string
	c.Assert(prefixed.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"k"})
}
