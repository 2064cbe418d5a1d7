package curves

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
)

func TestCurveGroupLaw(t *testing.T) {
	for _, curveType := range Curves() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)

			g := New(curveType)
			g.SetGenerator()
			c.Assert(g.IsZero(), qt.IsFalse)

			// 2G + 3G == 5G
			a := New(curveType)
			a.ScalarBaseMult(big.NewInt(2))
			b := New(curveType)
			b.ScalarMult(g, big.NewInt(3))
			sum := New(curveType)
			sum.Add(a, b)
			five := New(curveType)
			five.ScalarBaseMult(big.NewInt(5))
			c.Assert(sum.Equal(five), qt.IsTrue)

			// P + (-P) == O
			neg := New(curveType)
			neg.Neg(five)
			zero := New(curveType)
			zero.Add(five, neg)
			c.Assert(zero.IsZero(), qt.IsTrue)

			// n*G == O
			nG := New(curveType)
			nG.ScalarBaseMult(g.Order())
			c.Assert(nG.IsZero(), qt.IsTrue)

			// O + P == P
			id := New(curveType)
			id.Add(zero, five)
			c.Assert(id.Equal(five), qt.IsTrue)
		})
	}
}

func TestCurveMarshal(t *testing.T) {
	for _, curveType := range Curves() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)

			p := New(curveType)
			p.ScalarBaseMult(big.NewInt(123456789))
			buf := p.Marshal()
			c.Assert(buf, qt.HasLen, CompressedSize(curveType))

			q := New(curveType)
			c.Assert(q.Unmarshal(buf), qt.IsNil)
			c.Assert(q.Equal(p), qt.IsTrue)
			c.Assert(q.String(), qt.Equals, p.String())

			x, y := p.Point()
			c.Assert(New(curveType).SetPoint(x, y).Equal(p), qt.IsTrue)

			zero := New(curveType)
			c.Assert(zero.Marshal(), qt.DeepEquals, []byte{0x00})
			c.Assert(New(curveType).Unmarshal(zero.Marshal()), qt.ErrorIs, ecc.ErrIdentityPoint)
			c.Assert(New(curveType).Unmarshal(buf[:len(buf)-1]), qt.ErrorIs, ecc.ErrInvalidPoint)
		})
	}
}

func TestCurveRegistry(t *testing.T) {
	c := qt.New(t)
	c.Assert(IsValid(Default), qt.IsTrue)
	c.Assert(IsValid("ed25519"), qt.IsFalse)
	c.Assert(CompressedSize("ed25519"), qt.Equals, 0)
	c.Assert(func() { New("ed25519") }, qt.PanicMatches, "unsupported curve type: ed25519")
}
