package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// newElection generates the election keypair, stores the private key in the
// key store and the election with its public key in storage.
// POST /elections
func (a *API) newElection(w http.ResponseWriter, r *http.Request) {
	req := &NewElectionRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Curve == "" {
		req.Curve = a.defaultCurve
	}
	if !curves.IsValid(req.Curve) {
		ErrInvalidCurve.Withf("%q, supported curves are %v", req.Curve, curves.Curves()).Write(w)
		return
	}
	if req.CandidateCount < 1 || req.CandidateCount > elgamal.MaxCandidates {
		ErrInvalidCandidateCount.Withf("%d not in [1, %d]", req.CandidateCount, elgamal.MaxCandidates).Write(w)
		return
	}
	if req.EndTime <= time.Now().Unix() {
		ErrInvalidEndTime.Withf("end time %d is missing or in the past", req.EndTime).Write(w)
		return
	}

	a.electionLock.Lock()
	defer a.electionLock.Unlock()

	if _, err := a.storage.Election(req.ElectionID); err == nil {
		ErrElectionAlreadyExists.Withf("election %d", req.ElectionID).Write(w)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		ErrGenericInternalServerError.Withf("could not load election: %v", err).Write(w)
		return
	}

	if exists, err := a.keys.Exists(req.ElectionID); err != nil {
		ErrGenericInternalServerError.Withf("could not check the key store: %v", err).Write(w)
		return
	} else if exists {
		ErrElectionKeyExists.Withf("election %d", req.ElectionID).Write(w)
		return
	}

	kp, err := elgamal.GenerateKeypair(req.Curve, a.entropy)
	if err != nil {
		ErrKeyGenerationFailed.WithErr(err).Write(w)
		return
	}
	defer kp.PrivateKey.Zero()
	if err := a.keys.Store(req.ElectionID, kp); err != nil {
		ErrGenericInternalServerError.Withf("could not store election key: %v", err).Write(w)
		return
	}

	election := &storage.Election{
		ID:             req.ElectionID,
		CandidateCount: req.CandidateCount,
		Curve:          req.Curve,
		PublicKey:      kp.PublicKey.Bytes(),
		EndTime:        req.EndTime,
	}
	if err := a.storage.NewElection(election); err != nil {
		if delErr := a.keys.Delete(req.ElectionID); delErr != nil {
			log.Warnw("could not remove the key of a failed election", "electionId", req.ElectionID,
				"error", delErr.Error())
		}
		ErrGenericInternalServerError.Withf("could not store election: %v", err).Write(w)
		return
	}
	if err := a.storage.SetKeyMetadata(&storage.KeyMetadata{
		ElectionID:            req.ElectionID,
		Curve:                 req.Curve,
		PublicKey:             kp.PublicKey.Bytes(),
		PrivateKeyFingerprint: kp.PrivateKey.Fingerprint(),
		CreatedAt:             election.CreatedAt,
	}); err != nil {
		log.Warnw("could not store key metadata", "electionId", req.ElectionID, "error", err.Error())
	}

	log.Infow("new election",
		"electionId", election.ID,
		"candidates", election.CandidateCount,
		"curve", election.Curve,
		"publicKey", election.PublicKey.Hex(),
		"endTime", election.EndTime)
	httpWriteJSON(w, &ElectionResponse{Election: election})
}

// election returns the public information of an election.
// GET /elections/{electionId}
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	count, err := a.storage.CountBallots(election.ID)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not count ballots: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, &ElectionResponse{Election: election, BallotCount: count})
}

// listElections returns the IDs of the stored elections.
// GET /elections
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	ids, err := a.storage.ListElections()
	if err != nil {
		ErrGenericInternalServerError.Withf("could not list elections: %v", err).Write(w)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	httpWriteJSON(w, &ElectionListResponse{Elections: ids})
}

// loadElection parses the election ID of the path and loads the election.
// It writes the error response and returns false on failure.
func (a *API) loadElection(w http.ResponseWriter, r *http.Request) (*storage.Election, bool) {
	electionID, err := electionIDParam(r)
	if err != nil {
		ErrMalformedElectionID.WithErr(err).Write(w)
		return nil, false
	}
	election, err := a.storage.Election(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Withf("election %d", electionID).Write(w)
			return nil, false
		}
		ErrGenericInternalServerError.Withf("could not load election: %v", err).Write(w)
		return nil, false
	}
	return election, true
}
