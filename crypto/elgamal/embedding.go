package elgamal

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
)

// MaxCandidates bounds the size of the candidate lookup table.
const MaxCandidates = 1 << 16

// Candidate index i is embedded as the point (i+1)*G. The shift keeps the
// identity out of the valid plaintexts, so a zero point never decodes.

// EncodeCandidate returns the plaintext point (choice+1)*G on the given
// curve. It does not check the choice against any candidate count.
func EncodeCandidate(curveType string, choice int) ecc.Point {
	m := curves.New(curveType)
	m.ScalarBaseMult(big.NewInt(int64(choice) + 1))
	return m
}

// CandidateTable inverts the candidate embedding for a bounded number of
// candidates. It is read-only once built, so it can be shared between
// goroutines.
type CandidateTable struct {
	curve string
	table map[string]int
}

// NewCandidateTable precomputes (i+1)*G for every i in [0, count).
func NewCandidateTable(curveType string, count int) (*CandidateTable, error) {
	if !curves.IsValid(curveType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurveType, curveType)
	}
	if count < 1 || count > MaxCandidates {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCandidateCount, count)
	}
	g := curves.New(curveType)
	g.SetGenerator()
	acc := curves.New(curveType)
	acc.Set(g)
	t := &CandidateTable{
		curve: curveType,
		table: make(map[string]int, count),
	}
	for i := range count {
		t.table[pointKey(acc)] = i
		acc.Add(acc, g)
	}
	return t, nil
}

// Count returns the number of candidates covered by the table.
func (t *CandidateTable) Count() int {
	return len(t.table)
}

// Decode returns the candidate index embedded in m.
func (t *CandidateTable) Decode(m ecc.Point) (int, error) {
	if m.Type() != t.curve {
		return 0, fmt.Errorf("%w: point curve %s, table curve %s", ErrInvalidCurveType, m.Type(), t.curve)
	}
	if m.IsZero() {
		return 0, ErrPlaintextOutOfRange
	}
	i, ok := t.table[pointKey(m)]
	if !ok {
		return 0, ErrPlaintextOutOfRange
	}
	return i, nil
}

// pointKey returns a compact encoding to use as map key.
func pointKey(p ecc.Point) string {
	return string(p.Marshal())
}
