package tally

import (
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// CandidateResult is the number of votes counted for one candidate.
type CandidateResult struct {
	CandidateID int    `json:"candidateId" cbor:"1,keyasint"`
	Votes       uint64 `json:"votes"       cbor:"2,keyasint"`
}

// Failure describes a ballot excluded from the count.
type Failure struct {
	Index    int            `json:"index"    cbor:"1,keyasint"`
	BallotID types.HexBytes `json:"ballotId" cbor:"2,keyasint"`
	Error    string         `json:"error"    cbor:"3,keyasint"`
}

// BallotProof lets a third party check the decryption of one ballot with the
// public key alone.
type BallotProof struct {
	BallotID  types.HexBytes           `json:"ballotId"  cbor:"1,keyasint"`
	Choice    int                      `json:"choice"    cbor:"2,keyasint"`
	Plaintext types.HexBytes           `json:"plaintext" cbor:"3,keyasint"`
	Proof     *elgamal.DecryptionProof `json:"proof"     cbor:"4,keyasint"`
}

// Result is the outcome of a tally. It is derived from the ballots and the
// private key, so it can always be recomputed.
//
// TotalVotes + FailedDecryptions == SubmittedBallots.
type Result struct {
	ElectionID        uint64            `json:"electionId"             cbor:"1,keyasint"`
	Results           []CandidateResult `json:"results"                cbor:"2,keyasint"`
	TotalVotes        uint64            `json:"totalVotes"             cbor:"3,keyasint"`
	SubmittedBallots  uint64            `json:"submittedBallots"       cbor:"4,keyasint"`
	FailedDecryptions uint64            `json:"failedDecryptions"      cbor:"5,keyasint"`
	Failures          []Failure         `json:"failures,omitempty"     cbor:"6,keyasint,omitempty"`
	Proofs            []BallotProof     `json:"proofs,omitempty"       cbor:"7,keyasint,omitempty"`
	TalliedAt         int64             `json:"talliedAt"              cbor:"8,keyasint"`
}

// Votes returns the votes of a candidate, or zero if the candidate is not
// part of the result.
func (r *Result) Votes(candidateID int) uint64 {
	if candidateID < 0 || candidateID >= len(r.Results) {
		return 0
	}
	return r.Results[candidateID].Votes
}

// Counts returns the votes per candidate, indexed by candidate ID.
func (r *Result) Counts() []uint64 {
	counts := make([]uint64, len(r.Results))
	for i, cr := range r.Results {
		counts[i] = cr.Votes
	}
	return counts
}
