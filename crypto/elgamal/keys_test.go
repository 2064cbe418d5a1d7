package elgamal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/bn254"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/secp256k1"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device not ready")
}

func TestGenerateKeypair(t *testing.T) {
	c := qt.New(t)

	for _, curveType := range curves.Curves() {
		kp, err := GenerateKeypair(curveType, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(kp.Verify(), qt.IsTrue)
		c.Assert(kp.PrivateKey.Hex(), qt.HasLen, 64)
		c.Assert(kp.PublicKey.Curve(), qt.Equals, curveType)

		pk := curves.New(curveType)
		pk.ScalarBaseMult(kp.PrivateKey.Scalar())
		c.Assert(kp.PublicKey.Point().Equal(pk), qt.IsTrue)
	}
}

func TestGenerateKeypairMatchesGoEthereum(t *testing.T) {
	c := qt.New(t)

	for range 5 {
		kp, err := GenerateKeypair(secp256k1.CurveType, nil)
		c.Assert(err, qt.IsNil)

		ecdsaKey, err := crypto.ToECDSA(kp.PrivateKey.Bytes())
		c.Assert(err, qt.IsNil)
		c.Assert(kp.PublicKey.Bytes(), qt.DeepEquals, crypto.CompressPubkey(&ecdsaKey.PublicKey))
		c.Assert(kp.PublicKey.Bytes(), qt.HasLen, 33)
	}
}

func TestGenerateKeypairEntropyFailure(t *testing.T) {
	c := qt.New(t)

	_, err := GenerateKeypair(secp256k1.CurveType, failingReader{})
	c.Assert(err, qt.ErrorIs, ErrEntropyFailure)

	// a source stuck at zero never produces a valid scalar
	_, err = GenerateKeypair(secp256k1.CurveType, bytes.NewReader(make([]byte, 32*maxScalarAttempts)))
	c.Assert(err, qt.ErrorIs, ErrEntropyFailure)

	// a short read is an entropy failure too
	_, err = GenerateKeypair(secp256k1.CurveType, bytes.NewReader([]byte{1, 2, 3}))
	c.Assert(err, qt.ErrorIs, ErrEntropyFailure)

	_, err = GenerateKeypair("ed25519", nil)
	c.Assert(err, qt.ErrorIs, ErrInvalidCurveType)
}

func TestDeterministicEntropy(t *testing.T) {
	c := qt.New(t)

	seed := bytes.Repeat([]byte{0x11}, 32)
	kp, err := GenerateKeypair(secp256k1.CurveType, bytes.NewReader(seed))
	c.Assert(err, qt.IsNil)
	c.Assert(kp.PrivateKey.Hex(), qt.Equals, strings.Repeat("11", 32))

	// bn254 masks the two excess high bits of the 256 bit sample
	kp, err = GenerateKeypair(bn254.CurveType, bytes.NewReader(bytes.Repeat([]byte{0xaf}, 32)))
	c.Assert(err, qt.IsNil)
	c.Assert(kp.PrivateKey.Hex(), qt.Equals, "2f"+strings.Repeat("af", 31))
}

func TestParseKeys(t *testing.T) {
	c := qt.New(t)

	kp, err := GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	exported := kp.Export()

	sk, err := ParsePrivateKey(secp256k1.CurveType, "0x"+exported.PrivateKey+"\n")
	c.Assert(err, qt.IsNil)
	c.Assert(sk.Scalar().Cmp(kp.PrivateKey.Scalar()), qt.Equals, 0)

	pk, err := ParsePublicKey(secp256k1.CurveType, exported.PublicKey)
	c.Assert(err, qt.IsNil)
	c.Assert(pk.Equal(kp.PublicKey), qt.IsTrue)

	imported, err := ImportKeypair(exported)
	c.Assert(err, qt.IsNil)
	c.Assert(imported.Verify(), qt.IsTrue)

	order := curves.New(secp256k1.CurveType).Order()
	for _, bad := range []string{
		"",
		"abcd",
		strings.Repeat("zz", 32),
		strings.Repeat("00", 32),
		fmt.Sprintf("%064x", order),
	} {
		_, err := ParsePrivateKey(secp256k1.CurveType, bad)
		c.Assert(err, qt.ErrorIs, ErrMalformedKey, qt.Commentf("input %q", bad))
	}

	for _, bad := range []string{"", "02", "zz", "00", "04" + strings.Repeat("11", 32)} {
		_, err := ParsePublicKey(secp256k1.CurveType, bad)
		c.Assert(err, qt.ErrorIs, ErrMalformedKey, qt.Commentf("input %q", bad))
	}

	other, err := GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	mismatched := exported
	mismatched.PublicKey = other.PublicKey.Hex()
	_, err = ImportKeypair(mismatched)
	c.Assert(err, qt.ErrorIs, ErrMalformedKey)

	_, err = NewPrivateKey(secp256k1.CurveType, big.NewInt(-1))
	c.Assert(err, qt.ErrorIs, ErrMalformedKey)
}

func TestPrivateKeyIsRedacted(t *testing.T) {
	c := qt.New(t)

	kp, err := GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)

	c.Assert(kp.PrivateKey.String(), qt.Equals, redacted)
	c.Assert(fmt.Sprintf("%v", kp.PrivateKey), qt.Not(qt.Contains), kp.PrivateKey.Hex())

	data, err := json.Marshal(kp)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Not(qt.Contains), kp.PrivateKey.Hex())

	fp := kp.PrivateKey.Fingerprint()
	c.Assert(fp, qt.HasLen, 64)
	c.Assert(fp, qt.Not(qt.Equals), kp.PrivateKey.Hex())

	kp.PrivateKey.Zero()
	c.Assert(kp.PrivateKey.Scalar().Sign(), qt.Equals, 0)
	c.Assert(kp.Verify(), qt.IsFalse)
}
