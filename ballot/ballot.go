// Package ballot defines the encrypted ballot and the encryptor that voters
// use to produce it from a candidate choice and the election public key.
package ballot

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/types"
)

var (
	// ErrInvalidChoice is returned when the candidate index is outside the
	// election candidate range.
	ErrInvalidChoice = errors.New("invalid candidate choice")
	// ErrInvalidBallot is returned when a ballot is structurally invalid.
	ErrInvalidBallot = errors.New("invalid ballot")
	// ErrUnknownProofType is returned when a proof envelope names an unknown
	// proof system.
	ErrUnknownProofType = errors.New("unknown proof type")
	// ErrInvalidProofFormat is returned when a proof does not have the shape
	// of its proof system.
	ErrInvalidProofFormat = errors.New("invalid proof format")
)

// EncryptedBallot is a vote cast for an election. Once built it is immutable:
// the ID commits to the election, the voter nonce and the ciphertext.
type EncryptedBallot struct {
	ID         types.HexBytes
	ElectionID uint64
	Curve      string
	Ciphertext types.HexBytes
	Proof      Proof
	Timestamp  int64
}

// BallotID computes keccak256(electionID || voterNonce || ciphertext), with
// the election ID encoded as 8 big-endian bytes.
func BallotID(electionID uint64, voterNonce, ciphertext []byte) types.HexBytes {
	var eid [8]byte
	binary.BigEndian.PutUint64(eid[:], electionID)
	return crypto.Keccak256(eid[:], voterNonce, ciphertext)
}

// Valid checks the structure of the ballot without any curve work beyond
// the length of the ciphertext.
func (b *EncryptedBallot) Valid() error {
	if b == nil {
		return fmt.Errorf("%w: nil ballot", ErrInvalidBallot)
	}
	if !curves.IsValid(b.Curve) {
		return fmt.Errorf("%w: unsupported curve %q", ErrInvalidBallot, b.Curve)
	}
	if len(b.Ciphertext) != 2*curves.CompressedSize(b.Curve) {
		return fmt.Errorf("%w: ciphertext has %d bytes", ErrInvalidBallot, len(b.Ciphertext))
	}
	if len(b.ID) != 32 {
		return fmt.Errorf("%w: ballot id has %d bytes", ErrInvalidBallot, len(b.ID))
	}
	if b.Proof != nil {
		if err := b.Proof.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseCiphertext decodes the ciphertext points.
func (b *EncryptedBallot) ParseCiphertext() (*elgamal.Ciphertext, error) {
	return elgamal.UnmarshalCiphertext(b.Curve, b.Ciphertext)
}

// CiphertextHash returns keccak256 of the canonical ciphertext encoding. Two
// ballots carrying the same encrypted vote share it, whatever their IDs.
func (b *EncryptedBallot) CiphertextHash() (types.HexBytes, error) {
	ct, err := b.ParseCiphertext()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBallot, err)
	}
	return crypto.Keccak256(ct.Marshal()), nil
}

type encryptedBallotJSON struct {
	ID         types.HexBytes  `json:"id,omitempty"`
	ElectionID uint64          `json:"electionId"`
	Curve      string          `json:"curve,omitempty"`
	Ciphertext string          `json:"ciphertext"`
	Proof      json.RawMessage `json:"proof,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// MarshalJSON encodes the ballot with a hex ciphertext and the proof
// envelope, omitting the proof when there is none.
func (b *EncryptedBallot) MarshalJSON() ([]byte, error) {
	proof, err := MarshalProofJSON(b.Proof)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encryptedBallotJSON{
		ID:         b.ID,
		ElectionID: b.ElectionID,
		Curve:      b.Curve,
		Ciphertext: b.Ciphertext.Hex(),
		Proof:      proof,
		Timestamp:  b.Timestamp,
	})
}

// UnmarshalJSON decodes a ballot. The ciphertext may be hex or base64, and
// a missing curve defaults to secp256k1.
func (b *EncryptedBallot) UnmarshalJSON(data []byte) error {
	var w encryptedBallotJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ct, err := types.HexOrBase64ToHexBytes(w.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrInvalidBallot, err)
	}
	proof, err := UnmarshalProofJSON(w.Proof)
	if err != nil {
		return err
	}
	*b = EncryptedBallot{
		ID:         w.ID,
		ElectionID: w.ElectionID,
		Curve:      w.Curve,
		Ciphertext: ct,
		Proof:      proof,
		Timestamp:  w.Timestamp,
	}
	if b.Curve == "" {
		b.Curve = curves.Default
	}
	return nil
}

type encryptedBallotCBOR struct {
	ID         []byte          `cbor:"1,keyasint"`
	ElectionID uint64          `cbor:"2,keyasint"`
	Curve      string          `cbor:"3,keyasint"`
	Ciphertext []byte          `cbor:"4,keyasint"`
	Proof      cbor.RawMessage `cbor:"5,keyasint,omitempty"`
	Timestamp  int64           `cbor:"6,keyasint"`
}

// MarshalCBOR encodes the ballot for storage.
func (b *EncryptedBallot) MarshalCBOR() ([]byte, error) {
	proof, err := MarshalProofCBOR(b.Proof)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(encryptedBallotCBOR{
		ID:         b.ID,
		ElectionID: b.ElectionID,
		Curve:      b.Curve,
		Ciphertext: b.Ciphertext,
		Proof:      proof,
		Timestamp:  b.Timestamp,
	})
}

// UnmarshalCBOR decodes a stored ballot.
func (b *EncryptedBallot) UnmarshalCBOR(data []byte) error {
	var w encryptedBallotCBOR
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	proof, err := UnmarshalProofCBOR(w.Proof)
	if err != nil {
		return err
	}
	*b = EncryptedBallot{
		ID:         w.ID,
		ElectionID: w.ElectionID,
		Curve:      w.Curve,
		Ciphertext: w.Ciphertext,
		Proof:      proof,
		Timestamp:  w.Timestamp,
	}
	return nil
}
