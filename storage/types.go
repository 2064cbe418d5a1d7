package storage

import (
	"fmt"
	"time"

	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// ElectionStatus is the lifecycle state of an election.
type ElectionStatus string

const (
	// ElectionStatusOpen accepts ballots.
	ElectionStatusOpen ElectionStatus = "open"
	// ElectionStatusClosed no longer accepts ballots and waits for the tally.
	ElectionStatusClosed ElectionStatus = "closed"
	// ElectionStatusTallied has stored results.
	ElectionStatusTallied ElectionStatus = "tallied"
)

// Valid reports whether s is a known status.
func (s ElectionStatus) Valid() bool {
	switch s {
	case ElectionStatusOpen, ElectionStatusClosed, ElectionStatusTallied:
		return true
	}
	return false
}

// Election holds the public parameters of an election. The private key is
// never part of it.
type Election struct {
	ID             uint64         `json:"electionId"     cbor:"1,keyasint"`
	CandidateCount int            `json:"candidateCount" cbor:"2,keyasint"`
	Curve          string         `json:"curve"          cbor:"3,keyasint"`
	PublicKey      types.HexBytes `json:"publicKey"      cbor:"4,keyasint"`
	CreatedAt      int64          `json:"createdAt"      cbor:"5,keyasint"`
	EndTime        int64          `json:"endTime"        cbor:"6,keyasint"`
	Status         ElectionStatus `json:"status"         cbor:"7,keyasint"`
}

// ParsePublicKey decodes the election public key on its curve.
func (e *Election) ParsePublicKey() (*elgamal.PublicKey, error) {
	return elgamal.ParsePublicKey(e.Curve, e.PublicKey.Hex())
}

// Ended reports whether the election end time has passed at now. An
// election without end time never ends on its own.
func (e *Election) Ended(now time.Time) bool {
	return e.EndTime > 0 && now.Unix() >= e.EndTime
}

// AcceptsBallots reports whether ballots can be submitted at now.
func (e *Election) AcceptsBallots(now time.Time) bool {
	return e.Status == ElectionStatusOpen && !e.Ended(now)
}

func (e *Election) String() string {
	return fmt.Sprintf("election %d (%s, %d candidates)", e.ID, e.Status, e.CandidateCount)
}

// KeyStatus is the lifecycle state of an election keypair.
type KeyStatus string

const (
	// KeyStatusActive keys are waiting for the tally.
	KeyStatusActive KeyStatus = "active"
	// KeyStatusUsed keys already decrypted the election ballots.
	KeyStatusUsed KeyStatus = "used"
	// KeyStatusRevoked keys must not be used.
	KeyStatusRevoked KeyStatus = "revoked"
)

// KeyMetadata describes the keypair of an election. It carries a
// fingerprint of the private key, never the key itself.
type KeyMetadata struct {
	ElectionID            uint64         `json:"electionId"            cbor:"1,keyasint"`
	Curve                 string         `json:"curve"                 cbor:"2,keyasint"`
	PublicKey             types.HexBytes `json:"publicKey"             cbor:"3,keyasint"`
	PrivateKeyFingerprint string         `json:"privateKeyFingerprint" cbor:"4,keyasint"`
	CreatedAt             int64          `json:"createdAt"             cbor:"5,keyasint"`
	UsedAt                int64          `json:"usedAt,omitempty"      cbor:"6,keyasint,omitempty"`
	Status                KeyStatus      `json:"status"                cbor:"7,keyasint"`
}
