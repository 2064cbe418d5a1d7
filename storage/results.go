package storage

import (
	"fmt"

	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/tally"
)

// SetResults stores the tally result of an election, overwriting any
// previous one, and marks the election as tallied.
func (s *Storage) SetResults(res *tally.Result) error {
	if res == nil {
		return fmt.Errorf("nil results")
	}
	if _, err := s.Election(res.ElectionID); err != nil {
		return fmt.Errorf("results of election %d: %w", res.ElectionID, err)
	}
	s.globalLock.Lock()
	err := s.setArtifact(resultsPrefix, electionKey(res.ElectionID), res)
	s.globalLock.Unlock()
	if err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	log.Debugw("results stored", "electionId", res.ElectionID, "totalVotes", res.TotalVotes,
		"failed", res.FailedDecryptions)
	return s.UpdateElectionStatus(res.ElectionID, ElectionStatusTallied)
}

// Results returns the tally result of an election, or ErrNotFound.
func (s *Storage) Results(electionID uint64) (*tally.Result, error) {
	res := new(tally.Result)
	if err := s.getArtifact(resultsPrefix, electionKey(electionID), res); err != nil {
		return nil, err
	}
	return res, nil
}
