package elgamal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/types"
)

const (
	// ScalarSize is the length in bytes of an encoded private key.
	ScalarSize = 32
	// maxScalarAttempts bounds the rejection sampling loop so that a broken
	// entropy source returning constant data surfaces as ErrEntropyFailure.
	maxScalarAttempts = 128

	redacted = "[redacted]"
)

// PublicKey is an ElGamal public key, pk = sk*G.
type PublicKey struct {
	point ecc.Point
}

// NewPublicKey wraps a curve point as public key. The identity is rejected.
func NewPublicKey(p ecc.Point) (*PublicKey, error) {
	if p == nil || p.IsZero() {
		return nil, fmt.Errorf("%w: identity public key", ErrMalformedKey)
	}
	pk := p.New()
	pk.Set(p)
	return &PublicKey{point: pk}, nil
}

// ParsePublicKey decodes a hex encoded compressed point of the given curve.
func ParsePublicKey(curveType, s string) (*PublicKey, error) {
	if !curves.IsValid(curveType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurveType, curveType)
	}
	buf, err := types.HexStringToHexBytes(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	p := curves.New(curveType)
	if err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return &PublicKey{point: p}, nil
}

// Point returns a copy of the underlying curve point.
func (pk *PublicKey) Point() ecc.Point {
	p := pk.point.New()
	p.Set(pk.point)
	return p
}

// Curve returns the curve identifier of the key.
func (pk *PublicKey) Curve() string {
	return pk.point.Type()
}

// Bytes returns the compressed encoding of the key.
func (pk *PublicKey) Bytes() []byte {
	return pk.point.Marshal()
}

// Hex returns the hex encoded compressed point.
func (pk *PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

// String implements fmt.Stringer.
func (pk *PublicKey) String() string {
	return pk.Hex()
}

// Equal reports whether both keys hold the same point on the same curve.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.Curve() == other.Curve() && pk.point.Equal(other.point)
}

// PrivateKey is an ElGamal private scalar in [1, n). Its String and JSON
// forms are redacted so that it cannot leak through logs by accident; use
// Hex or Bytes explicitly to export it.
type PrivateKey struct {
	curve string
	d     *big.Int
}

// NewPrivateKey builds a private key from a scalar, checking 0 < d < n.
func NewPrivateKey(curveType string, d *big.Int) (*PrivateKey, error) {
	if !curves.IsValid(curveType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurveType, curveType)
	}
	if d == nil || d.Sign() <= 0 || d.Cmp(curves.New(curveType).Order()) >= 0 {
		return nil, fmt.Errorf("%w: scalar must be > 0 and < curve order", ErrMalformedKey)
	}
	return &PrivateKey{curve: curveType, d: new(big.Int).Set(d)}, nil
}

// ParsePrivateKey decodes a 64 character big-endian hex scalar.
func ParsePrivateKey(curveType, s string) (*PrivateKey, error) {
	s = types.TrimHex(strings.TrimSpace(s))
	if len(s) != 2*ScalarSize {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrMalformedKey, 2*ScalarSize, len(s))
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return NewPrivateKey(curveType, new(big.Int).SetBytes(buf))
}

// Curve returns the curve identifier of the key.
func (sk *PrivateKey) Curve() string {
	return sk.curve
}

// Scalar returns a copy of the private scalar.
func (sk *PrivateKey) Scalar() *big.Int {
	return new(big.Int).Set(sk.d)
}

// Bytes returns the scalar as 32 big-endian bytes.
func (sk *PrivateKey) Bytes() []byte {
	buf := make([]byte, ScalarSize)
	sk.d.FillBytes(buf)
	return buf
}

// Hex returns the scalar as 64 hex characters.
func (sk *PrivateKey) Hex() string {
	return hex.EncodeToString(sk.Bytes())
}

// PublicKey derives pk = sk*G.
func (sk *PrivateKey) PublicKey() *PublicKey {
	p := curves.New(sk.curve)
	p.ScalarBaseMult(sk.d)
	return &PublicKey{point: p}
}

// Fingerprint returns the hex sha256 digest of the scalar bytes. It
// identifies a key in metadata and logs without revealing it.
func (sk *PrivateKey) Fingerprint() string {
	sum := sha256.Sum256(sk.Bytes())
	return hex.EncodeToString(sum[:])
}

// Zero overwrites the scalar. The key is unusable afterwards.
func (sk *PrivateKey) Zero() {
	if sk.d != nil {
		sk.d.SetInt64(0)
	}
}

// String implements fmt.Stringer without revealing the scalar.
func (sk *PrivateKey) String() string {
	return redacted
}

// MarshalJSON never reveals the scalar.
func (sk *PrivateKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Keypair holds an election keypair.
type Keypair struct {
	PublicKey  *PublicKey
	PrivateKey *PrivateKey
}

// KeypairHex is the exported form of a keypair: two hex strings.
type KeypairHex struct {
	Curve      string `json:"curve"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// GenerateKeypair draws a private scalar from entropy (crypto/rand when nil)
// and derives the public key. A failing entropy source returns an error
// wrapping ErrEntropyFailure; it is never retried.
func GenerateKeypair(curveType string, entropy io.Reader) (*Keypair, error) {
	if !curves.IsValid(curveType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurveType, curveType)
	}
	d, err := RandomScalar(curves.New(curveType).Order(), entropy)
	if err != nil {
		return nil, err
	}
	sk := &PrivateKey{curve: curveType, d: d}
	return &Keypair{PublicKey: sk.PublicKey(), PrivateKey: sk}, nil
}

// Verify reports whether PublicKey == PrivateKey*G.
func (kp *Keypair) Verify() bool {
	if kp == nil || kp.PublicKey == nil || kp.PrivateKey == nil {
		return false
	}
	return kp.PrivateKey.PublicKey().Equal(kp.PublicKey)
}

// Export returns the hex encoded keypair.
func (kp *Keypair) Export() KeypairHex {
	return KeypairHex{
		Curve:      kp.PrivateKey.Curve(),
		PublicKey:  kp.PublicKey.Hex(),
		PrivateKey: kp.PrivateKey.Hex(),
	}
}

// ImportKeypair parses an exported keypair and checks that both halves match.
func ImportKeypair(k KeypairHex) (*Keypair, error) {
	sk, err := ParsePrivateKey(k.Curve, k.PrivateKey)
	if err != nil {
		return nil, err
	}
	pk, err := ParsePublicKey(k.Curve, k.PublicKey)
	if err != nil {
		return nil, err
	}
	kp := &Keypair{PublicKey: pk, PrivateKey: sk}
	if !kp.Verify() {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrMalformedKey)
	}
	return kp, nil
}

// RandomScalar samples a uniform scalar in [1, order) from entropy, using
// crypto/rand when entropy is nil. Out of range candidates are discarded.
func RandomScalar(order *big.Int, entropy io.Reader) (*big.Int, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	bitLen := order.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	// mask the excess high bits so that at least half the candidates land in range
	mask := byte(0xff)
	if excess := len(buf)*8 - bitLen; excess > 0 {
		mask >>= excess
	}
	for range maxScalarAttempts {
		if _, err := io.ReadFull(entropy, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
		}
		buf[0] &= mask
		k := new(big.Int).SetBytes(buf)
		if k.Sign() > 0 && k.Cmp(order) < 0 {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: no scalar in range after %d attempts", ErrEntropyFailure, maxScalarAttempts)
}
