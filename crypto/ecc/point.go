// Package ecc defines the group element abstraction shared by every curve
// supported for ballot encryption.
package ecc

import (
	"errors"
	"math/big"
)

var (
	// ErrInvalidPoint is returned when a serialized point does not decode to
	// a valid, non-identity element of the curve.
	ErrInvalidPoint = errors.New("invalid curve point")
	// ErrIdentityPoint is returned when the identity element is decoded or
	// encoded where a proper group element is expected.
	ErrIdentityPoint = errors.New("point at infinity")
)

// Point defines the common operations that can be performed on elliptic curve
// group elements. Implementations wrap a concrete curve library and keep the
// value in a form that can be safely reused as receiver of the operations.
type Point interface {
	// New returns a new elliptic curve point set to the identity element.
	New() Point

	// Order returns the order of the prime subgroup generated by the base
	// point.
	Order() *big.Int

	// Add adds two elliptic curve group elements and stores the result in the
	// receiver.
	Add(a, b Point)

	// SafeAdd adds two elliptic curve group elements and stores the result in
	// the receiver, holding an exclusive lock on the receiver.
	SafeAdd(a, b Point)

	// ScalarMult multiplies the group element a by the scalar value and stores
	// the result in the receiver.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar*G.
	ScalarBaseMult(scalar *big.Int)

	// Marshal serializes the element using the canonical compressed encoding
	// of the curve. The identity is encoded as a single zero byte.
	Marshal() []byte

	// Unmarshal decodes a compressed encoding into the receiver. The identity
	// and points outside the prime subgroup are rejected.
	Unmarshal(buf []byte) error

	// Equal reports whether both elements are the same group element.
	Equal(a Point) bool

	// Neg sets the receiver to -a.
	Neg(a Point)

	// SetZero sets the receiver to the identity element.
	SetZero()

	// IsZero reports whether the receiver is the identity element.
	IsZero() bool

	// Set copies a into the receiver.
	Set(a Point)

	// SetGenerator sets the receiver to the base point of the curve.
	SetGenerator()

	// String returns the hexadecimal representation of Marshal.
	String() string

	// Point returns the affine X and Y coordinates of the element.
	Point() (*big.Int, *big.Int)

	// SetPoint returns a new element with the given affine coordinates.
	SetPoint(x, y *big.Int) Point

	// Type returns the curve identifier.
	Type() string
}
