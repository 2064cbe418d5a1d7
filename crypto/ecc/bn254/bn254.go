// Package bn254 implements the BN254 G1 group operations.
// It provides a wrapper around the gnark-crypto implementation to conform to the ecc.Point interface.
package bn254

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
)

// CurveType is the identifier for the BN254 curve implementation
const CurveType = "bn254"

// CompressedSize is the length of a compressed G1 point.
const CompressedSize = bn254.SizeOfG1AffineCompressed

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
	lock  sync.Mutex
}

// New creates a new G1 point (identity element by default)
func (g *G1) New() ecc.Point {
	return &G1{inner: new(bn254.G1Affine)}
}

// Order returns the order of the BN254 scalar field
func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

// Add computes the addition of two curve points and stores the result in the receiver
func (g *G1) Add(a, b ecc.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).affine(), b.(*G1).affine())
	g.ensure()
	*g.inner = *temp
}

// SafeAdd performs thread-safe addition of two curve points
func (g *G1) SafeAdd(a, b ecc.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

// ScalarMult computes the scalar multiplication of a point and stores the result in the receiver
func (g *G1) ScalarMult(a ecc.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).affine(), new(big.Int).Mod(scalar, fr.Modulus()))
	g.ensure()
	*g.inner = *temp
}

// ScalarBaseMult computes the scalar multiplication of the base point and stores the result in the receiver
func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.ensure()
	g.inner.ScalarMultiplicationBase(new(big.Int).Mod(scalar, fr.Modulus()))
}

// Marshal serializes the point using the gnark compressed format, or a
// single zero byte for the identity.
func (g *G1) Marshal() []byte {
	if g.IsZero() {
		return []byte{0x00}
	}
	b := g.inner.Bytes()
	return b[:]
}

// Unmarshal deserializes a compressed point. SetBytes checks that the point
// is on the curve and in the prime subgroup.
func (g *G1) Unmarshal(buf []byte) error {
	if len(buf) == 1 && buf[0] == 0x00 {
		return ecc.ErrIdentityPoint
	}
	if len(buf) != CompressedSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ecc.ErrInvalidPoint, CompressedSize, len(buf))
	}
	p := new(bn254.G1Affine)
	if _, err := p.SetBytes(buf); err != nil {
		return fmt.Errorf("%w: %v", ecc.ErrInvalidPoint, err)
	}
	if p.IsInfinity() {
		return ecc.ErrIdentityPoint
	}
	g.inner = p
	return nil
}

// MarshalJSON serializes the elliptic curve element into a JSON hex string
func (g *G1) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON deserializes the elliptic curve element from a JSON hex string
func (g *G1) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ecc.ErrInvalidPoint, err)
	}
	return g.Unmarshal(b)
}

// MarshalCBOR serializes the elliptic curve element into a CBOR byte slice
func (g *G1) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(g.Marshal())
}

// UnmarshalCBOR deserializes the elliptic curve element from a CBOR byte slice
func (g *G1) UnmarshalCBOR(buf []byte) error {
	var b []byte
	if err := cbor.Unmarshal(buf, &b); err != nil {
		return err
	}
	if len(b) == 1 && b[0] == 0x00 {
		g.SetZero()
		return nil
	}
	return g.Unmarshal(b)
}

// Equal checks if two curve points are equal
func (g *G1) Equal(a ecc.Point) bool {
	return g.affine().Equal(a.(*G1).affine())
}

// Neg computes the negation of a curve point and stores the result in the receiver
func (g *G1) Neg(a ecc.Point) {
	temp := new(bn254.G1Affine)
	temp.Neg(a.(*G1).affine())
	g.ensure()
	*g.inner = *temp
}

// SetZero sets the point to the identity element (zero)
func (g *G1) SetZero() {
	g.ensure()
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

// IsZero reports whether the point is the identity element
func (g *G1) IsZero() bool {
	return g.affine().IsInfinity()
}

// Set copies the value from another curve point
func (g *G1) Set(a ecc.Point) {
	g.ensure()
	*g.inner = *a.(*G1).affine()
}

// SetGenerator sets the point to the base generator of the curve
func (g *G1) SetGenerator() {
	_, _, gen, _ := bn254.Generators()
	g.ensure()
	*g.inner = gen
}

// String returns a string representation of the point
func (g *G1) String() string {
	return hex.EncodeToString(g.Marshal())
}

// Point returns the x and y coordinates of the point
func (g *G1) Point() (*big.Int, *big.Int) {
	p := g.affine()
	return p.X.BigInt(new(big.Int)), p.Y.BigInt(new(big.Int))
}

// SetPoint sets the point to the given x and y coordinates and returns the point
func (g *G1) SetPoint(x, y *big.Int) ecc.Point {
	np := &G1{inner: new(bn254.G1Affine)}
	np.inner.X.SetBigInt(x)
	np.inner.Y.SetBigInt(y)
	return np
}

// Type returns the curve type identifier
func (g *G1) Type() string {
	return CurveType
}

func (g *G1) ensure() {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
}

func (g *G1) affine() *bn254.G1Affine {
	if g.inner == nil {
		return new(bn254.G1Affine)
	}
	return g.inner
}
