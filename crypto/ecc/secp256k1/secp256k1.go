// Package secp256k1 implements the ecc.Point interface over the secp256k1
// curve. It wraps the decred implementation, which is also the one used by
// go-ethereum for its signatures.
package secp256k1

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
)

// CurveType is the identifier for the secp256k1 curve implementation.
const CurveType = "secp256k1"

// CompressedSize is the length of a SEC1 compressed point.
const CompressedSize = secp256k1.PubKeyBytesLenCompressed

var order = new(big.Int).Set(secp256k1.S256().Params().N)

// Point is a secp256k1 group element. The inner jacobian point is kept in
// affine form (Z=1), or all zeros for the identity.
type Point struct {
	inner secp256k1.JacobianPoint
	lock  sync.Mutex
}

// New returns a new point set to the identity element.
func (p *Point) New() ecc.Point {
	return &Point{}
}

// Order returns the order of the secp256k1 group.
func (p *Point) Order() *big.Int {
	return new(big.Int).Set(order)
}

// Add computes a+b and stores the result in the receiver.
func (p *Point) Add(a, b ecc.Point) {
	var result secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a.(*Point).inner, &b.(*Point).inner, &result)
	p.setJacobian(&result)
}

// SafeAdd performs a thread-safe addition of two points.
func (p *Point) SafeAdd(a, b ecc.Point) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.Add(a, b)
}

// ScalarMult computes scalar*a and stores the result in the receiver.
func (p *Point) ScalarMult(a ecc.Point, scalar *big.Int) {
	ap := a.(*Point)
	k := toScalar(scalar)
	if ap.IsZero() || k.IsZero() {
		p.SetZero()
		return
	}
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(k, &ap.inner, &result)
	p.setJacobian(&result)
}

// ScalarBaseMult computes scalar*G and stores the result in the receiver.
func (p *Point) ScalarBaseMult(scalar *big.Int) {
	k := toScalar(scalar)
	if k.IsZero() {
		p.SetZero()
		return
	}
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &result)
	p.setJacobian(&result)
}

// Marshal returns the 33 byte SEC1 compressed encoding of the point, or a
// single zero byte for the identity.
func (p *Point) Marshal() []byte {
	if p.IsZero() {
		return []byte{0x00}
	}
	x, y := p.inner.X, p.inner.Y
	return secp256k1.NewPublicKey(&x, &y).SerializeCompressed()
}

// Unmarshal decodes a SEC1 compressed point.
func (p *Point) Unmarshal(buf []byte) error {
	if len(buf) == 1 && buf[0] == 0x00 {
		return ecc.ErrIdentityPoint
	}
	if len(buf) != CompressedSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ecc.ErrInvalidPoint, CompressedSize, len(buf))
	}
	pub, err := secp256k1.ParsePubKey(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ecc.ErrInvalidPoint, err)
	}
	pub.AsJacobian(&p.inner)
	return nil
}

// MarshalJSON encodes the point as a hex string.
func (p *Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a hex encoded compressed point.
func (p *Point) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ecc.ErrInvalidPoint, err)
	}
	return p.Unmarshal(b)
}

// MarshalCBOR encodes the point as a CBOR byte string.
func (p *Point) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.Marshal())
}

// UnmarshalCBOR decodes a CBOR byte string. The identity is accepted here
// since stored aggregates may legitimately hold it.
func (p *Point) UnmarshalCBOR(buf []byte) error {
	var b []byte
	if err := cbor.Unmarshal(buf, &b); err != nil {
		return err
	}
	if len(b) == 1 && b[0] == 0x00 {
		p.SetZero()
		return nil
	}
	return p.Unmarshal(b)
}

// Equal reports whether both points are the same group element.
func (p *Point) Equal(a ecc.Point) bool {
	ap := a.(*Point)
	if p.IsZero() || ap.IsZero() {
		return p.IsZero() && ap.IsZero()
	}
	return p.inner.X.Equals(&ap.inner.X) && p.inner.Y.Equals(&ap.inner.Y)
}

// Neg sets the receiver to -a.
func (p *Point) Neg(a ecc.Point) {
	ap := a.(*Point)
	if ap.IsZero() {
		p.SetZero()
		return
	}
	p.inner.Set(&ap.inner)
	p.inner.Y.Negate(1).Normalize()
}

// SetZero sets the point to the identity element.
func (p *Point) SetZero() {
	p.inner = secp256k1.JacobianPoint{}
}

// IsZero reports whether the point is the identity element.
func (p *Point) IsZero() bool {
	return isInfinity(&p.inner)
}

// Set copies a into the receiver.
func (p *Point) Set(a ecc.Point) {
	p.inner.Set(&a.(*Point).inner)
}

// SetGenerator sets the point to the secp256k1 base point.
func (p *Point) SetGenerator() {
	p.ScalarBaseMult(big.NewInt(1))
}

// String returns the hex encoding of the compressed point.
func (p *Point) String() string {
	return hex.EncodeToString(p.Marshal())
}

// Point returns the affine coordinates of the point.
func (p *Point) Point() (*big.Int, *big.Int) {
	if p.IsZero() {
		return new(big.Int), new(big.Int)
	}
	x, y := p.inner.X.Bytes(), p.inner.Y.Bytes()
	return new(big.Int).SetBytes(x[:]), new(big.Int).SetBytes(y[:])
}

// SetPoint returns a new point with the given affine coordinates.
func (p *Point) SetPoint(x, y *big.Int) ecc.Point {
	np := &Point{}
	if x.Sign() == 0 && y.Sign() == 0 {
		return np
	}
	np.inner.X.SetByteSlice(x.Bytes())
	np.inner.Y.SetByteSlice(y.Bytes())
	np.inner.Z.SetInt(1)
	return np
}

// Type returns the curve type identifier.
func (p *Point) Type() string {
	return CurveType
}

func (p *Point) setJacobian(j *secp256k1.JacobianPoint) {
	if isInfinity(j) {
		p.SetZero()
		return
	}
	j.ToAffine()
	p.inner.Set(j)
}

func isInfinity(j *secp256k1.JacobianPoint) bool {
	return (j.X.IsZero() && j.Y.IsZero()) || j.Z.IsZero()
}

func toScalar(k *big.Int) *secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	var buf [32]byte
	new(big.Int).Mod(k, order).FillBytes(buf[:])
	s.SetBytes(&buf)
	return &s
}
