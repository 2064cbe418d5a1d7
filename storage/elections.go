package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
)

// NewElection stores a new election. It returns ErrKeyAlreadyExists if an
// election with the same ID is already stored. A zero status is stored as
// open and a zero CreatedAt as the current time.
func (s *Storage) NewElection(e *Election) error {
	if e == nil {
		return fmt.Errorf("nil election")
	}
	if !curves.IsValid(e.Curve) {
		return fmt.Errorf("%w: %q", elgamal.ErrInvalidCurveType, e.Curve)
	}
	if e.CandidateCount < 1 || e.CandidateCount > elgamal.MaxCandidates {
		return fmt.Errorf("%w: %d", elgamal.ErrInvalidCandidateCount, e.CandidateCount)
	}
	if _, err := e.ParsePublicKey(); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = ElectionStatusOpen
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid election status %q", e.Status)
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := electionKey(e.ID)
	exists, err := s.hasArtifact(electionPrefix, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrKeyAlreadyExists
	}
	if err := s.setArtifact(electionPrefix, key, e); err != nil {
		return fmt.Errorf("store election: %w", err)
	}
	cached := *e
	s.cache.Add(cacheKey(electionPrefix, e.ID), &cached)
	log.Debugw("election created", "electionId", e.ID, "candidates", e.CandidateCount,
		"curve", e.Curve, "endTime", e.EndTime)
	return nil
}

// Election returns the election with the given ID, or ErrNotFound.
func (s *Storage) Election(electionID uint64) (*Election, error) {
	if e, ok := s.cache.Get(cacheKey(electionPrefix, electionID)); ok {
		c := *e
		return &c, nil
	}
	e := new(Election)
	if err := s.getArtifact(electionPrefix, electionKey(electionID), e); err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(electionPrefix, electionID), e)
	c := *e
	return &c, nil
}

// ListElections returns the IDs of the stored elections in ascending order.
func (s *Storage) ListElections() ([]uint64, error) {
	keys, err := s.listArtifacts(electionPrefix, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(keys))
	for _, k := range keys {
		if len(k) != 8 {
			log.Warnw("skipping malformed election key", "key", fmt.Sprintf("%x", k))
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(k))
	}
	return ids, nil
}

// UpdateElectionStatus changes the status of an election. Tallied elections
// cannot go back to another status.
func (s *Storage) UpdateElectionStatus(electionID uint64, status ElectionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid election status %q", status)
	}
	return s.updateElection(electionID, func(e *Election) error {
		if e.Status == ElectionStatusTallied && status != ElectionStatusTallied {
			return fmt.Errorf("election %d is already tallied", electionID)
		}
		e.Status = status
		return nil
	})
}

// updateElection applies updateFn to the stored election and writes it
// back.
func (s *Storage) updateElection(electionID uint64, updateFn func(*Election) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	e := new(Election)
	key := electionKey(electionID)
	if err := s.getArtifact(electionPrefix, key, e); err != nil {
		return err
	}
	previous := e.Status
	if err := updateFn(e); err != nil {
		return err
	}
	if err := s.setArtifact(electionPrefix, key, e); err != nil {
		return fmt.Errorf("store election: %w", err)
	}
	s.cache.Add(cacheKey(electionPrefix, electionID), e)
	if previous != e.Status {
		log.Infow("election status changed", "electionId", electionID,
			"from", string(previous), "to", string(e.Status))
	}
	return nil
}
