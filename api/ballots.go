package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// encryptBallot encrypts a choice with the election public key. The ballot
// is returned, not stored.
// POST /elections/{electionId}/encrypt
func (a *API) encryptBallot(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	req := &EncryptRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	proof, err := ballot.UnmarshalProofJSON(req.Proof)
	if err != nil {
		ErrInvalidBallotProof.WithErr(err).Write(w)
		return
	}
	pk, err := election.ParsePublicKey()
	if err != nil {
		ErrGenericInternalServerError.Withf("invalid election public key: %v", err).Write(w)
		return
	}
	enc, err := ballot.NewEncryptor(pk, election.CandidateCount)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if a.entropy != nil {
		enc.SetEntropy(a.entropy)
	}
	b, err := enc.Encrypt(req.Choice, ballot.Context{
		ElectionID: election.ID,
		VoterNonce: req.VoterNonce,
	}, proof)
	switch {
	case errors.Is(err, ballot.ErrInvalidChoice):
		ErrInvalidChoice.WithErr(err).Write(w)
		return
	case errors.Is(err, elgamal.ErrEntropyFailure):
		ErrEncryptionFailed.WithErr(err).Write(w)
		return
	case err != nil:
		ErrInvalidBallotProof.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, b)
}

// submitBallot stores an encrypted ballot.
// POST /elections/{electionId}/ballots
func (a *API) submitBallot(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	b := &ballot.EncryptedBallot{}
	if err := json.NewDecoder(r.Body).Decode(b); err != nil {
		if errors.Is(err, ballot.ErrUnknownProofType) || errors.Is(err, ballot.ErrInvalidProofFormat) {
			ErrInvalidBallotProof.WithErr(err).Write(w)
			return
		}
		if errors.Is(err, ballot.ErrInvalidBallot) {
			ErrInvalidBallot.WithErr(err).Write(w)
			return
		}
		ErrMalformedBody.Withf("could not decode ballot: %v", err).Write(w)
		return
	}
	err := a.storage.PushBallot(election.ID, b)
	switch {
	case errors.Is(err, storage.ErrKeyAlreadyExists):
		ErrBallotAlreadySubmitted.Withf("ballot %s", b.ID.Hex()).Write(w)
		return
	case errors.Is(err, storage.ErrElectionClosed):
		ErrElectionNotAcceptingBallots.Withf("election %d", election.ID).Write(w)
		return
	case errors.Is(err, ballot.ErrInvalidBallot), errors.Is(err, elgamal.ErrInvalidCurveType):
		ErrInvalidBallot.WithErr(err).Write(w)
		return
	case errors.Is(err, ballot.ErrInvalidProofFormat):
		ErrInvalidBallotProof.WithErr(err).Write(w)
		return
	case err != nil:
		ErrGenericInternalServerError.Withf("could not store ballot: %v", err).Write(w)
		return
	}
	log.Debugw("ballot submitted", "electionId", election.ID, "ballotId", b.ID.Hex())
	httpWriteJSON(w, &SubmitBallotResponse{BallotID: b.ID})
}

// ballotCount returns the number of ballots stored for an election.
// GET /elections/{electionId}/ballots
func (a *API) ballotCount(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	count, err := a.storage.CountBallots(election.ID)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not count ballots: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, &BallotCountResponse{ElectionID: election.ID, Count: count})
}
