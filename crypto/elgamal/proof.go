// -----------------------------------------------------------------------------
//  Chaum-Pedersen NIZK proof of correct ElGamal decryption
//
//  Goal: prove non-interactively that a plaintext point M is the correct
//  decryption of ciphertext (C1, C2) under public key P = d·G, without
//  revealing the private key d or the encryption nonce k. We prove equality
//  of discrete logs:
//
//        log_G(P)  =  log_{C1}(C2 – M)
//
//  Prover (BuildDecryptionProof):
//    1.  Pick r ← [1, n).
//    2.  A1 = r·G,  A2 = r·C1                (commitment)
//    3.  D  = C2 – M                         (shared secret)
//    4.  e  = H(tag,G,P,C1,D,A1,A2) mod n    (Fiat-Shamir)
//    5.  z  = r + e·d mod n                  (response)
//
//  Verifier (VerifyDecryptionProof) recomputes D and e, then checks
//        z·G  ==  A1 + e·P
//        z·C1 ==  A2 + e·D
// -----------------------------------------------------------------------------

package elgamal

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// proofDomainTag separates this transcript from any other hash usage.
const proofDomainTag = "davinci-ballotbox/decryption-proof/v1"

// DecryptionProof is a non-interactive Chaum–Pedersen proof that C2 – M and
// C1 share the same discrete log with respect to P and G. Points are stored
// compressed so the proof can be serialized without curve information.
type DecryptionProof struct {
	A1 types.HexBytes `json:"a1" cbor:"1,keyasint"` // = r·G
	A2 types.HexBytes `json:"a2" cbor:"2,keyasint"` // = r·C1
	Z  types.HexBytes `json:"z"  cbor:"3,keyasint"` // = r + e·d
}

// BuildDecryptionProof creates a proof that m is the decryption of ct under
// sk.
func BuildDecryptionProof(sk *PrivateKey, ct *Ciphertext, m ecc.Point) (*DecryptionProof, error) {
	if !ct.Valid() || ct.Curve() != sk.curve || m.Type() != sk.curve {
		return nil, fmt.Errorf("%w: curve mismatch", ErrMalformedCiphertext)
	}
	pk := sk.PublicKey()
	order := pk.point.Order()

	r, err := RandomScalar(order, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sample r: %w", err)
	}

	a1 := pk.point.New()
	a1.ScalarBaseMult(r) // r·G
	a2 := pk.point.New()
	a2.ScalarMult(ct.C1, r) // r·C1

	d := sharedSecret(ct, m)
	e := challenge(order, pk.point, ct.C1, d, a1, a2)

	z := new(big.Int).Mul(e, sk.d)
	z.Add(z, r)
	z.Mod(z, order)

	return &DecryptionProof{
		A1: a1.Marshal(),
		A2: a2.Marshal(),
		Z:  types.HexBytes(z.Bytes()).LeftPad(ScalarSize),
	}, nil
}

// VerifyDecryptionProof checks the proof that m is the decryption of ct
// under pk. It returns nil if the proof is valid.
func VerifyDecryptionProof(pk *PublicKey, ct *Ciphertext, m ecc.Point, proof *DecryptionProof) error {
	if proof == nil {
		return fmt.Errorf("%w: missing proof", ErrInvalidProof)
	}
	curveType := pk.Curve()
	if !ct.Valid() || ct.Curve() != curveType || m.Type() != curveType {
		return fmt.Errorf("%w: curve mismatch", ErrInvalidProof)
	}
	a1 := curves.New(curveType)
	if err := a1.Unmarshal(proof.A1); err != nil {
		return fmt.Errorf("%w: a1: %v", ErrInvalidProof, err)
	}
	a2 := curves.New(curveType)
	if err := a2.Unmarshal(proof.A2); err != nil {
		return fmt.Errorf("%w: a2: %v", ErrInvalidProof, err)
	}
	order := pk.point.Order()
	z := new(big.Int).SetBytes(proof.Z)
	if z.Cmp(order) >= 0 {
		return fmt.Errorf("%w: response out of range", ErrInvalidProof)
	}

	d := sharedSecret(ct, m)
	e := challenge(order, pk.point, ct.C1, d, a1, a2)

	// z·G == A1 + e·P
	left1 := pk.point.New()
	left1.ScalarBaseMult(z)
	tmp := pk.point.New()
	tmp.ScalarMult(pk.point, e)
	right1 := pk.point.New()
	right1.Add(a1, tmp)
	if !left1.Equal(right1) {
		return fmt.Errorf("%w: first equation fails", ErrInvalidProof)
	}

	// z·C1 == A2 + e·D
	left2 := pk.point.New()
	left2.ScalarMult(ct.C1, z)
	tmp.ScalarMult(d, e)
	right2 := pk.point.New()
	right2.Add(a2, tmp)
	if !left2.Equal(right2) {
		return fmt.Errorf("%w: second equation fails", ErrInvalidProof)
	}
	return nil
}

// sharedSecret returns D = C2 – M.
func sharedSecret(ct *Ciphertext, m ecc.Point) ecc.Point {
	negM := m.New()
	negM.Neg(m)
	d := ct.C2.New()
	d.Add(ct.C2, negM)
	return d
}

// challenge hashes the transcript to a scalar mod order.
func challenge(order *big.Int, pk ecc.Point, pts ...ecc.Point) *big.Int {
	h := sha256.New()
	h.Write([]byte(proofDomainTag))
	g := pk.New()
	g.SetGenerator()
	for _, p := range append([]ecc.Point{g, pk}, pts...) {
		b := p.Marshal()
		h.Write([]byte{byte(len(b))})
		h.Write(b)
	}
	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, order)
}
