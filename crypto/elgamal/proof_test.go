package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
)

func TestDecryptionProof(t *testing.T) {
	for _, curveType := range curves.Curves() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)

			kp, err := GenerateKeypair(curveType, nil)
			c.Assert(err, qt.IsNil)

			// Positive case
			ct, _, err := Encrypt(kp.PublicKey, EncodeCandidate(curveType, 2))
			c.Assert(err, qt.IsNil)
			m, err := DecryptPoint(kp.PrivateKey, ct)
			c.Assert(err, qt.IsNil)

			proof, err := BuildDecryptionProof(kp.PrivateKey, ct, m)
			c.Assert(err, qt.IsNil)
			c.Assert(VerifyDecryptionProof(kp.PublicKey, ct, m, proof), qt.IsNil,
				qt.Commentf("proof must verify for correct data"))

			// Negative cases (should fail)

			// 1) Wrong plaintext
			err = VerifyDecryptionProof(kp.PublicKey, ct, EncodeCandidate(curveType, 3), proof)
			c.Assert(err, qt.ErrorIs, ErrInvalidProof)

			// 2) Tampered Z
			z := new(big.Int).SetBytes(proof.Z)
			z.Add(z, big.NewInt(1))
			bad := *proof
			bad.Z = z.FillBytes(make([]byte, ScalarSize))
			err = VerifyDecryptionProof(kp.PublicKey, ct, m, &bad)
			c.Assert(err, qt.ErrorIs, ErrInvalidProof)

			// 3) Wrong public key
			other, err := GenerateKeypair(curveType, nil)
			c.Assert(err, qt.IsNil)
			err = VerifyDecryptionProof(other.PublicKey, ct, m, proof)
			c.Assert(err, qt.ErrorIs, ErrInvalidProof)

			// 4) Garbage commitments
			bad = *proof
			bad.A1 = []byte{0x01, 0x02}
			err = VerifyDecryptionProof(kp.PublicKey, ct, m, &bad)
			c.Assert(err, qt.ErrorIs, ErrInvalidProof)

			c.Assert(VerifyDecryptionProof(kp.PublicKey, ct, m, nil), qt.ErrorIs, ErrInvalidProof)
		})
	}
}
