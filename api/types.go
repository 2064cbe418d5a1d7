package api

import (
	"encoding/json"

	"github.com/vocdoni/davinci-ballotbox/storage"
	"github.com/vocdoni/davinci-ballotbox/tally"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// NewElectionRequest is the body of POST /elections. EndTime is a unix time
// in the future, after which the election can be tallied. An empty curve
// selects the default one.
type NewElectionRequest struct {
	ElectionID     uint64 `json:"electionId"`
	CandidateCount int    `json:"candidateCount"`
	EndTime        int64  `json:"endTime"`
	Curve          string `json:"curve,omitempty"`
}

// ElectionResponse is the public view of an election.
type ElectionResponse struct {
	*storage.Election
	BallotCount int `json:"ballotCount"`
}

// ElectionListResponse is the body of GET /elections.
type ElectionListResponse struct {
	Elections []uint64 `json:"elections"`
}

// EncryptRequest is the body of POST /elections/{electionId}/encrypt.
type EncryptRequest struct {
	Choice     int             `json:"choice"`
	VoterNonce types.HexBytes  `json:"voterNonce"`
	Proof      json.RawMessage `json:"proof,omitempty"`
}

// SubmitBallotResponse is the body returned after storing a ballot.
type SubmitBallotResponse struct {
	BallotID types.HexBytes `json:"ballotId"`
}

// BallotCountResponse is the body of GET /elections/{electionId}/ballots.
type BallotCountResponse struct {
	ElectionID uint64 `json:"electionId"`
	Count      int    `json:"count"`
}

// JobStatus is the state of an asynchronous tally.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// TallyJob is the record of an asynchronous tally, returned by
// GET /jobs/{jobId}.
type TallyJob struct {
	ID         string        `json:"jobId"`
	ElectionID uint64        `json:"electionId"`
	Status     JobStatus     `json:"status"`
	Result     *tally.Result `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  int64         `json:"createdAt"`
	FinishedAt int64         `json:"finishedAt,omitempty"`
}

// TallyJobResponse is the body of POST /elections/{electionId}/tally.
type TallyJobResponse struct {
	JobID string `json:"jobId"`
}
