package elgamal

import (
	"fmt"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
)

// Ciphertext is an ElGamal ciphertext in additive notation:
// C1 = k*G and C2 = M + k*PK.
type Ciphertext struct {
	C1 ecc.Point
	C2 ecc.Point
}

// Curve returns the curve identifier of the ciphertext points.
func (ct *Ciphertext) Curve() string {
	return ct.C1.Type()
}

// Valid reports whether both points are set, non-identity and on the same
// curve.
func (ct *Ciphertext) Valid() bool {
	return ct != nil && ct.C1 != nil && ct.C2 != nil &&
		!ct.C1.IsZero() && !ct.C2.IsZero() &&
		ct.C1.Type() == ct.C2.Type()
}

// Marshal returns the concatenation of the compressed encodings of C1 and C2.
func (ct *Ciphertext) Marshal() []byte {
	c1 := ct.C1.Marshal()
	c2 := ct.C2.Marshal()
	out := make([]byte, 0, len(c1)+len(c2))
	out = append(out, c1...)
	return append(out, c2...)
}

// UnmarshalCiphertext decodes the output of Ciphertext.Marshal for the given
// curve.
func UnmarshalCiphertext(curveType string, buf []byte) (*Ciphertext, error) {
	size := curves.CompressedSize(curveType)
	if size == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurveType, curveType)
	}
	if len(buf) != 2*size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedCiphertext, 2*size, len(buf))
	}
	c1 := curves.New(curveType)
	if err := c1.Unmarshal(buf[:size]); err != nil {
		return nil, fmt.Errorf("%w: c1: %v", ErrMalformedCiphertext, err)
	}
	c2 := curves.New(curveType)
	if err := c2.Unmarshal(buf[size:]); err != nil {
		return nil, fmt.Errorf("%w: c2: %v", ErrMalformedCiphertext, err)
	}
	return &Ciphertext{C1: c1, C2: c2}, nil
}

// Add sets the receiver to the homomorphic sum a+b, which encrypts the sum
// of both plaintext points, and returns it.
func (ct *Ciphertext) Add(a, b *Ciphertext) *Ciphertext {
	c1 := a.C1.New()
	c1.Add(a.C1, b.C1)
	c2 := a.C2.New()
	c2.Add(a.C2, b.C2)
	ct.C1, ct.C2 = c1, c2
	return ct
}

// Equal reports whether both ciphertexts hold the same points.
func (ct *Ciphertext) Equal(other *Ciphertext) bool {
	return ct.C1.Equal(other.C1) && ct.C2.Equal(other.C2)
}

// String returns the hex encoding of Marshal.
func (ct *Ciphertext) String() string {
	return fmt.Sprintf("%x", ct.Marshal())
}
