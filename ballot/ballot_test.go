package ballot

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/bn254"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/secp256k1"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/types"
)

func testGroth16Proof() *Groth16Proof {
	return &Groth16Proof{
		PiA:           []string{"1", "2", "1"},
		PiB:           [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
		PiC:           []string{"7", "8", "1"},
		Protocol:      "groth16",
		Curve:         "bn128",
		PublicSignals: []string{"42"},
	}
}

func TestEncryptRoundTrip(t *testing.T) {
	for _, curveType := range []string{secp256k1.CurveType, bn254.CurveType} {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)

			kp, err := elgamal.GenerateKeypair(curveType, nil)
			c.Assert(err, qt.IsNil)

			const count = 5
			enc, err := NewEncryptor(kp.PublicKey, count)
			c.Assert(err, qt.IsNil)
			table, err := elgamal.NewCandidateTable(curveType, count)
			c.Assert(err, qt.IsNil)

			for choice := range count {
				b, err := enc.Encrypt(choice, Context{ElectionID: 7, VoterNonce: []byte{byte(choice)}}, nil)
				c.Assert(err, qt.IsNil)
				c.Assert(b.Valid(), qt.IsNil)
				c.Assert(b.Curve, qt.Equals, curveType)
				c.Assert(b.ElectionID, qt.Equals, uint64(7))
				c.Assert(IsNoProof(b.Proof), qt.IsTrue)

				ct, err := b.ParseCiphertext()
				c.Assert(err, qt.IsNil)
				m, err := elgamal.DecryptPoint(kp.PrivateKey, ct)
				c.Assert(err, qt.IsNil)
				got, err := table.Decode(m)
				c.Assert(err, qt.IsNil)
				c.Assert(got, qt.Equals, choice)
			}
		})
	}
}

func TestEncryptInvalidChoice(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	enc, err := NewEncryptor(kp.PublicKey, 3)
	c.Assert(err, qt.IsNil)

	// the entropy source must not be touched for an invalid choice
	enc.entropy = failingReader{}
	for _, choice := range []int{-1, 3, 100} {
		_, err := enc.Encrypt(choice, Context{ElectionID: 1}, nil)
		c.Assert(err, qt.ErrorIs, ErrInvalidChoice)
	}
	_, err = enc.Encrypt(0, Context{ElectionID: 1}, nil)
	c.Assert(err, qt.ErrorIs, elgamal.ErrEntropyFailure)

	_, err = NewEncryptor(kp.PublicKey, 0)
	c.Assert(err, qt.ErrorIs, elgamal.ErrInvalidCandidateCount)
	_, err = NewEncryptor(nil, 3)
	c.Assert(err, qt.ErrorIs, elgamal.ErrMalformedKey)

	_, err = Encrypt(kp.PublicKey, 3, 0, Context{ElectionID: 1}, &PlonkProof{})
	c.Assert(err, qt.ErrorIs, ErrInvalidProofFormat)
}

func TestEncryptIsProbabilistic(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)

	ctx := Context{ElectionID: 1, VoterNonce: []byte("nonce")}
	a, err := Encrypt(kp.PublicKey, 2, 1, ctx, nil)
	c.Assert(err, qt.IsNil)
	b, err := Encrypt(kp.PublicKey, 2, 1, ctx, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(a.Ciphertext.Equal(b.Ciphertext), qt.IsFalse)
	c.Assert(a.ID.Equal(b.ID), qt.IsFalse)
}

func TestBallotID(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	enc, err := NewEncryptor(kp.PublicKey, 2)
	c.Assert(err, qt.IsNil)
	enc.now = func() time.Time { return time.Unix(1700000000, 0) }

	b, err := enc.Encrypt(1, Context{ElectionID: 3, VoterNonce: []byte{0xaa}}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Timestamp, qt.Equals, int64(1700000000))
	c.Assert(b.ID, qt.HasLen, 32)
	c.Assert(b.ID.Equal(BallotID(3, []byte{0xaa}, b.Ciphertext)), qt.IsTrue)
	c.Assert(b.ID.Equal(BallotID(4, []byte{0xaa}, b.Ciphertext)), qt.IsFalse)
	c.Assert(b.ID.Equal(BallotID(3, []byte{0xab}, b.Ciphertext)), qt.IsFalse)
}

func TestEncryptedBallotJSON(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)

	b, err := Encrypt(kp.PublicKey, 4, 2, Context{ElectionID: 9}, testGroth16Proof())
	c.Assert(err, qt.IsNil)

	data, err := json.Marshal(b)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"ciphertext":"`+b.Ciphertext.Hex()+`"`)
	c.Assert(string(data), qt.Contains, `"type":"groth16"`)

	var decoded EncryptedBallot
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.ID.Equal(b.ID), qt.IsTrue)
	c.Assert(decoded.Ciphertext.Equal(b.Ciphertext), qt.IsTrue)
	c.Assert(decoded.Proof, qt.DeepEquals, Proof(testGroth16Proof()))
	c.Assert(decoded.Valid(), qt.IsNil)

	// no proof: the field is omitted and decodes back to NoProof
	b.Proof = NoProof{}
	data, err = json.Marshal(b)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Not(qt.Contains), `"proof"`)
	decoded = EncryptedBallot{}
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(IsNoProof(decoded.Proof), qt.IsTrue)

	// base64 ciphertext and a missing curve are accepted
	raw := `{"electionId":9,"ciphertext":"` + base64.StdEncoding.EncodeToString(b.Ciphertext) + `","timestamp":1}`
	decoded = EncryptedBallot{}
	c.Assert(json.Unmarshal([]byte(raw), &decoded), qt.IsNil)
	c.Assert(decoded.Curve, qt.Equals, secp256k1.CurveType)
	c.Assert(decoded.Ciphertext.Equal(b.Ciphertext), qt.IsTrue)

	raw = `{"electionId":9,"ciphertext":"` + b.Ciphertext.Hex() + `","proof":{"type":"stark","data":{}}}`
	c.Assert(json.Unmarshal([]byte(raw), &decoded), qt.ErrorIs, ErrUnknownProofType)

	raw = `{"electionId":9,"ciphertext":"not-hex-nor-base64!"}`
	c.Assert(json.Unmarshal([]byte(raw), &decoded), qt.ErrorIs, ErrInvalidBallot)
}

func TestEncryptedBallotCBOR(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(bn254.CurveType, nil)
	c.Assert(err, qt.IsNil)

	plonk := &PlonkProof{Data: types.HexBytes{1, 2, 3}, PublicSignals: []string{"1"}}
	for _, proof := range []Proof{nil, plonk, testGroth16Proof()} {
		b, err := Encrypt(kp.PublicKey, 2, 1, Context{ElectionID: 5, VoterNonce: []byte("n")}, proof)
		c.Assert(err, qt.IsNil)

		data, err := cbor.Marshal(b)
		c.Assert(err, qt.IsNil)
		var decoded EncryptedBallot
		c.Assert(cbor.Unmarshal(data, &decoded), qt.IsNil)
		c.Assert(decoded.ID.Equal(b.ID), qt.IsTrue)
		c.Assert(decoded.Curve, qt.Equals, bn254.CurveType)
		c.Assert(decoded.Ciphertext.Equal(b.Ciphertext), qt.IsTrue)
		c.Assert(decoded.Timestamp, qt.Equals, b.Timestamp)
		c.Assert(decoded.Proof.Kind(), qt.Equals, b.Proof.Kind())
	}
}

func TestBallotValid(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	b, err := Encrypt(kp.PublicKey, 2, 0, Context{ElectionID: 1}, nil)
	c.Assert(err, qt.IsNil)

	var nilBallot *EncryptedBallot
	c.Assert(nilBallot.Valid(), qt.ErrorIs, ErrInvalidBallot)

	bad := *b
	bad.Curve = "ed25519"
	c.Assert(bad.Valid(), qt.ErrorIs, ErrInvalidBallot)

	bad = *b
	bad.Ciphertext = bad.Ciphertext[:10]
	c.Assert(bad.Valid(), qt.ErrorIs, ErrInvalidBallot)

	bad = *b
	bad.ID = nil
	c.Assert(bad.Valid(), qt.ErrorIs, ErrInvalidBallot)

	bad = *b
	bad.Proof = &Groth16Proof{PiA: []string{"1"}}
	c.Assert(bad.Valid(), qt.ErrorIs, ErrInvalidProofFormat)
}

func TestGroth16ProofValidate(t *testing.T) {
	c := qt.New(t)

	c.Assert(testGroth16Proof().Validate(), qt.IsNil)

	p := testGroth16Proof()
	p.PiB[1] = []string{"5"}
	c.Assert(p.Validate(), qt.ErrorIs, ErrInvalidProofFormat)

	p = testGroth16Proof()
	p.Protocol = "plonk"
	c.Assert(p.Validate(), qt.ErrorIs, ErrInvalidProofFormat)

	// snarkjs output decodes as is
	raw := `{"type":"groth16","data":{"pi_a":["1","2","1"],"pi_b":[["3","4"],["5","6"],["1","0"]],"pi_c":["7","8","1"],"protocol":"groth16","curve":"bn128"}}`
	proof, err := UnmarshalProofJSON(json.RawMessage(raw))
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Kind(), qt.Equals, ProofKindGroth16)
	c.Assert(proof.Validate(), qt.IsNil)

	proof, err = UnmarshalProofJSON(json.RawMessage("null"))
	c.Assert(err, qt.IsNil)
	c.Assert(IsNoProof(proof), qt.IsTrue)

	_, err = UnmarshalProofJSON(json.RawMessage(strings.Repeat("{", 3)))
	c.Assert(err, qt.ErrorIs, ErrInvalidProofFormat)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, elgamal.ErrEntropyFailure
}

func TestCiphertextHash(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	b, err := Encrypt(kp.PublicKey, 2, 1, Context{ElectionID: 1, VoterNonce: []byte{1}}, nil)
	c.Assert(err, qt.IsNil)
	h, err := b.CiphertextHash()
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.HasLen, 32)

	// the hash ignores the ballot ID
	replay := *b
	replay.ID = append(types.HexBytes{}, b.ID...)
	replay.ID[0] ^= 0xff
	rh, err := replay.CiphertextHash()
	c.Assert(err, qt.IsNil)
	c.Assert(rh, qt.DeepEquals, h)

	other, err := Encrypt(kp.PublicKey, 2, 1, Context{ElectionID: 1, VoterNonce: []byte{1}}, nil)
	c.Assert(err, qt.IsNil)
	oh, err := other.CiphertextHash()
	c.Assert(err, qt.IsNil)
	c.Assert(oh, qt.Not(qt.DeepEquals), h)

	bad := *b
	bad.Ciphertext = make(types.HexBytes, len(b.Ciphertext))
	_, err = bad.CiphertextHash()
	c.Assert(err, qt.ErrorIs, ErrInvalidBallot)
}
