package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/db/prefixeddb"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// ballotKey is electionID + ballotID, so the ballots of one election share
// a prefix and iterate in ballot ID order.
func ballotKey(electionID uint64, ballotID []byte) []byte {
	return append(electionKey(electionID), ballotID...)
}

// ciphertextKey is electionID + keccak256(ciphertext).
func ciphertextKey(electionID uint64, ciphertextHash []byte) []byte {
	return append(electionKey(electionID), ciphertextHash...)
}

// PushBallot stores an encrypted ballot of an open election. It returns
// ErrElectionClosed if the election is unknown, does not accept ballots or
// differs from the ballot election, and ErrKeyAlreadyExists if a ballot
// with the same ID or the same ciphertext was already stored.
func (s *Storage) PushBallot(electionID uint64, b *ballot.EncryptedBallot) error {
	if err := b.Valid(); err != nil {
		return err
	}
	ctHash, err := b.CiphertextHash()
	if err != nil {
		return err
	}
	if b.ElectionID != electionID {
		return fmt.Errorf("%w: ballot belongs to election %d", ErrElectionClosed, b.ElectionID)
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	e, err := s.Election(electionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown election %d", ErrElectionClosed, electionID)
		}
		return err
	}
	if !e.AcceptsBallots(time.Now()) {
		return fmt.Errorf("%w: election %d", ErrElectionClosed, electionID)
	}
	if b.Curve != e.Curve {
		return fmt.Errorf("%w: curve %s, election uses %s", ballot.ErrInvalidBallot, b.Curve, e.Curve)
	}

	key := ballotKey(electionID, b.ID)
	ctKey := ciphertextKey(electionID, ctHash)
	for _, k := range []struct{ prefix, key []byte }{{ballotPrefix, key}, {ciphertextPrefix, ctKey}} {
		exists, err := s.hasArtifact(k.prefix, k.key)
		if err != nil {
			return err
		}
		if exists {
			return ErrKeyAlreadyExists
		}
	}
	data, err := EncodeArtifact(b)
	if err != nil {
		return fmt.Errorf("encode ballot: %w", err)
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, ballotPrefix).Set(key, data); err != nil {
		return fmt.Errorf("store ballot: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, ciphertextPrefix).Set(ctKey, b.ID); err != nil {
		return fmt.Errorf("store ballot ciphertext index: %w", err)
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("store ballot: %w", err)
	}
	log.Debugw("ballot stored", "electionId", electionID, "ballotId", b.ID.Hex())
	return nil
}

// Ballot returns a stored ballot, or ErrNotFound.
func (s *Storage) Ballot(electionID uint64, ballotID types.HexBytes) (*ballot.EncryptedBallot, error) {
	b := new(ballot.EncryptedBallot)
	if err := s.getArtifact(ballotPrefix, ballotKey(electionID, ballotID), b); err != nil {
		return nil, err
	}
	return b, nil
}

// Ballots returns every ballot of an election ordered by ballot ID.
func (s *Storage) Ballots(electionID uint64) ([]*ballot.EncryptedBallot, error) {
	var (
		ballots []*ballot.EncryptedBallot
		decErr  error
	)
	pr := prefixeddb.NewPrefixedReader(s.db, ballotPrefix)
	if err := pr.Iterate(electionKey(electionID), func(k, v []byte) bool {
		b := new(ballot.EncryptedBallot)
		if err := DecodeArtifact(v, b); err != nil {
			decErr = fmt.Errorf("decode ballot %x: %w", k, err)
			return false
		}
		ballots = append(ballots, b)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return ballots, nil
}

// CountBallots returns the number of ballots stored for an election.
func (s *Storage) CountBallots(electionID uint64) (int, error) {
	count := 0
	pr := prefixeddb.NewPrefixedReader(s.db, ballotPrefix)
	if err := pr.Iterate(electionKey(electionID), func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return count, nil
}
