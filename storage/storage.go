/*
Package storage provides the persistent storage layer of the ballot box.

# Storage Organization

The storage uses a key-value database with prefixed namespaces. Election IDs
are encoded as 8 byte big-endian integers so that iteration follows the
numeric order.

## Elections
  - e/  : electionID → Election (candidate count, curve, public key, end time, status)
  - km/ : electionID → KeyMetadata (public key, private key fingerprint, status)

## Ballots
  - b/  : electionID + ballotID → EncryptedBallot
  - c/  : electionID + keccak256(ciphertext) → ballotID

Ballots of one election are iterated in ballot ID order, which makes the
input of a tally independent of the submission order. The c/ index rejects
a ciphertext submitted again under another ballot ID.

## Results
  - r/  : electionID → tally.Result
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/db/prefixeddb"
	"github.com/vocdoni/davinci-ballotbox/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")
	ErrElectionClosed   = errors.New("election is not accepting ballots")

	// Prefixes
	electionPrefix    = []byte("e/")
	keyMetadataPrefix = []byte("km/")
	ballotPrefix      = []byte("b/")
	ciphertextPrefix  = []byte("c/")
	resultsPrefix     = []byte("r/")
)

const cacheSize = 1000

// Storage manages elections, encrypted ballots and tally results.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex                   // Lock for every write
	cache      *lru.Cache[string, *Election] // Cache for decoded elections
}

// New creates a new Storage instance on top of the given database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, *Election](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close compacts and closes the underlying database. A failed compaction is
// logged and the database is closed anyway.
func (s *Storage) Close() {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	s.cache.Purge()
	if err := s.db.Compact(); err != nil {
		log.Warnw("failed to compact storage", "error", err.Error())
	}
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// electionKey encodes an election ID as a database key.
func electionKey(electionID uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, electionID)
}

func cacheKey(prefix []byte, electionID uint64) string {
	return string(prefix) + strconv.FormatUint(electionID, 10)
}

// getArtifact retrieves and decodes the artifact stored under prefix+key.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// setArtifact encodes and stores an artifact under prefix+key, overwriting
// any previous value.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	return wTx.Commit()
}

// hasArtifact reports whether prefix+key is present.
func (s *Storage) hasArtifact(prefix, key []byte) (bool, error) {
	if _, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// listArtifacts returns the keys under prefix+subPrefix, without prefix.
func (s *Storage) listArtifacts(prefix, subPrefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(subPrefix, func(k, _ []byte) bool {
		keys = append(keys, append([]byte(nil), k...))
		return true
	}); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return keys, nil
}

// deleteArtifact removes prefix+key. Missing keys are not an error.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	return wTx.Commit()
}
