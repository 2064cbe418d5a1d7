package prefixeddb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/db/inmemory"
)

func TestNamespaces(t *testing.T) {
	c := qt.New(t)

	base, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)
	a := NewPrefixedDatabase(base, []byte("a/"))
	b := NewPrefixedDatabase(base, []byte("b/"))

	tx := a.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("from a")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	tx = b.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("from b")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := a.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "from a")
	v, err = base.Get([]byte("b/k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "from b")

	var keys []string
	c.Assert(NewPrefixedReader(base, []byte("b/")).Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"k"})

	// nested prefixes compose
	ab := NewPrefixedDatabase(a, []byte("x/"))
	tx = ab.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("nested")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	_, err = base.Get([]byte("a/x/k"))
	c.Assert(err, qt.IsNil)
}
