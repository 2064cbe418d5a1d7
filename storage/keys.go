package storage

import (
	"fmt"
	"time"
)

// SetKeyMetadata stores the key metadata of an election. It returns
// ErrKeyAlreadyExists if the election already has key metadata. A zero
// status is stored as active.
func (s *Storage) SetKeyMetadata(km *KeyMetadata) error {
	if km == nil {
		return fmt.Errorf("nil key metadata")
	}
	if km.Status == "" {
		km.Status = KeyStatusActive
	}
	if km.CreatedAt == 0 {
		km.CreatedAt = time.Now().Unix()
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := electionKey(km.ElectionID)
	exists, err := s.hasArtifact(keyMetadataPrefix, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrKeyAlreadyExists
	}
	return s.setArtifact(keyMetadataPrefix, key, km)
}

// KeyMetadata returns the key metadata of an election, or ErrNotFound.
func (s *Storage) KeyMetadata(electionID uint64) (*KeyMetadata, error) {
	km := new(KeyMetadata)
	if err := s.getArtifact(keyMetadataPrefix, electionKey(electionID), km); err != nil {
		return nil, err
	}
	return km, nil
}

// MarkKeyUsed records that the election key decrypted the ballots. Marking
// a used key again only refreshes UsedAt. Revoked keys cannot be marked.
func (s *Storage) MarkKeyUsed(electionID uint64) error {
	return s.setKeyStatus(electionID, KeyStatusUsed)
}

// RevokeKey marks the election key as revoked.
func (s *Storage) RevokeKey(electionID uint64) error {
	return s.setKeyStatus(electionID, KeyStatusRevoked)
}

func (s *Storage) setKeyStatus(electionID uint64, status KeyStatus) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	km := new(KeyMetadata)
	key := electionKey(electionID)
	if err := s.getArtifact(keyMetadataPrefix, key, km); err != nil {
		return err
	}
	if km.Status == KeyStatusRevoked && status != KeyStatusRevoked {
		return fmt.Errorf("key of election %d is revoked", electionID)
	}
	km.Status = status
	if status == KeyStatusUsed {
		km.UsedAt = time.Now().Unix()
	}
	return s.setArtifact(keyMetadataPrefix, key, km)
}
