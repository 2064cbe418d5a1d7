package curves

import (
	"slices"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/bn254"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/secp256k1"
)

// Default is the curve used when none is specified.
const Default = secp256k1.CurveType

// New creates a new instance of a Curve implementation based on the provided
// type string. If the type is not supported, it will panic. The supported
// types are defined in this package via the Curves() function, but you can
// also use the IsValid() function to check if a type is supported.
func New(curveType string) ecc.Point {
	switch curveType {
	case secp256k1.CurveType:
		return &secp256k1.Point{}
	case bn254.CurveType:
		return (&bn254.G1{}).New()
	default:
		panic("unsupported curve type: " + curveType)
	}
}

// Curves returns a list of supported curve types.
func Curves() []string {
	return []string{
		secp256k1.CurveType,
		bn254.CurveType,
	}
}

// IsValid reports whether the curve type is supported.
func IsValid(curveType string) bool {
	return slices.Contains(Curves(), curveType)
}

// CompressedSize returns the length of a compressed point of the curve, or 0
// if the curve is not supported.
func CompressedSize(curveType string) int {
	switch curveType {
	case secp256k1.CurveType:
		return secp256k1.CompressedSize
	case bn254.CurveType:
		return bn254.CompressedSize
	default:
		return 0
	}
}
