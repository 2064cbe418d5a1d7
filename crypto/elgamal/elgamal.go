package elgamal

import (
	"fmt"
	"io"
	"math/big"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
)

// RandK generates a fresh ephemeral scalar in [1, order) for one encryption.
func RandK(pk *PublicKey, entropy io.Reader) (*big.Int, error) {
	k, err := RandomScalar(pk.point.Order(), entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random k: %w", err)
	}
	return k, nil
}

// Encrypt encrypts the plaintext point m under the public key, drawing a
// fresh ephemeral k from crypto/rand. It returns the ciphertext and the k
// used, which the caller must discard once it is no longer needed.
func Encrypt(pk *PublicKey, m ecc.Point) (*Ciphertext, *big.Int, error) {
	k, err := RandK(pk, nil)
	if err != nil {
		return nil, nil, err
	}
	return EncryptWithK(pk, m, k), k, nil
}

// EncryptWithK encrypts the plaintext point m using the provided k:
// C1 = k*G and C2 = m + k*PK.
func EncryptWithK(pk *PublicKey, m ecc.Point, k *big.Int) *Ciphertext {
	// compute C1 = k * G
	c1 := pk.point.New()
	c1.ScalarBaseMult(k)
	// compute s = k * PK
	s := pk.point.New()
	s.ScalarMult(pk.point, k)
	// compute C2 = M + s
	c2 := pk.point.New()
	c2.Add(m, s)
	return &Ciphertext{C1: c1, C2: c2}
}

// DecryptPoint recovers the plaintext point M = C2 - sk*C1.
func DecryptPoint(sk *PrivateKey, ct *Ciphertext) (ecc.Point, error) {
	if sk == nil || sk.d == nil || sk.d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}
	if !ct.Valid() {
		return nil, ErrMalformedCiphertext
	}
	if ct.Curve() != sk.curve {
		return nil, fmt.Errorf("%w: key curve %s, ciphertext curve %s", ErrMalformedKey, sk.curve, ct.Curve())
	}
	tmp := ct.C1.New()
	tmp.ScalarMult(ct.C1, sk.d) // tmp = d*C1
	tmp.Neg(tmp)                //      -d*C1
	m := ct.C2.New()
	m.Add(ct.C2, tmp) // M = C2 - d*C1
	return m, nil
}

// CheckK reports whether k was used to produce C1, i.e. C1 == k*G.
func CheckK(ct *Ciphertext, k *big.Int) bool {
	kG := ct.C1.New()
	kG.ScalarBaseMult(k)
	return kG.Equal(ct.C1)
}
