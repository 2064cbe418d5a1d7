// Package keystore persists election keypairs on disk, with the private key
// sealed under a password.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/types"
	"golang.org/x/crypto/scrypt"
)

const (
	// Algorithm names the sealing scheme written in every key file.
	Algorithm = "scrypt+aes-256-gcm"

	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	cipherKeyLen = 32
	saltSize     = 32

	dirPerm  = 0o700
	filePerm = 0o600
)

var (
	// ErrKeyNotFound is returned when no key file exists for an election.
	ErrKeyNotFound = errors.New("key not found")
	// ErrDecryptKey is returned when the private key cannot be unsealed,
	// usually because of a wrong password.
	ErrDecryptKey = errors.New("could not decrypt private key")
	// ErrEmptyPassword is returned by New for an empty password.
	ErrEmptyPassword = errors.New("keystore password is empty")
)

// KeyFile is the on-disk form of a sealed keypair.
type KeyFile struct {
	ElectionID   uint64         `json:"electionId"`
	Curve        string         `json:"curve"`
	PublicKey    string         `json:"publicKey"`
	EncryptedKey types.HexBytes `json:"encryptedKey"`
	Nonce        types.HexBytes `json:"nonce"`
	Salt         types.HexBytes `json:"salt"`
	Algorithm    string         `json:"algorithm"`
	CreatedAt    int64          `json:"createdAt"`
}

// KeyStore keeps one key file per election in a directory only readable by
// the owner.
type KeyStore struct {
	dir      string
	password []byte
	mu       sync.Mutex
}

// New opens the keystore at dir, creating the directory if needed.
func New(dir, password string) (*KeyStore, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("could not create keystore dir: %w", err)
	}
	if err := os.Chmod(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("could not restrict keystore dir: %w", err)
	}
	return &KeyStore{dir: dir, password: []byte(password)}, nil
}

// Dir returns the keystore directory.
func (ks *KeyStore) Dir() string {
	return ks.dir
}

// Path returns the key file path of an election.
func (ks *KeyStore) Path(electionID uint64) string {
	return filepath.Join(ks.dir, fmt.Sprintf("election-%d.key.json", electionID))
}

// Store seals the keypair and writes it for the election, replacing any
// previous key.
func (ks *KeyStore) Store(electionID uint64, kp *elgamal.Keypair) error {
	if kp == nil || !kp.Verify() {
		return fmt.Errorf("%w: invalid keypair", elgamal.ErrMalformedKey)
	}
	kf, err := seal(ks.password, electionID, kp)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	tmp, err := os.CreateTemp(ks.dir, ".key-*")
	if err != nil {
		return fmt.Errorf("could not create key file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), ks.Path(electionID)); err != nil {
		return fmt.Errorf("could not write key file: %w", err)
	}
	log.Infow("election key stored",
		"electionId", electionID,
		"fingerprint", kp.PrivateKey.Fingerprint())
	return nil
}

// Load reads and unseals the keypair of an election.
func (ks *KeyStore) Load(electionID uint64) (*elgamal.Keypair, error) {
	kf, err := ks.KeyFile(electionID)
	if err != nil {
		return nil, err
	}
	if kf.ElectionID != electionID {
		return nil, fmt.Errorf("%w: key file belongs to election %d", ErrDecryptKey, kf.ElectionID)
	}
	return open(ks.password, kf)
}

// KeyFile reads the sealed key file of an election without unsealing it.
func (ks *KeyStore) KeyFile(electionID uint64) (*KeyFile, error) {
	ks.mu.Lock()
	data, err := os.ReadFile(ks.Path(electionID))
	ks.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: election %d", ErrKeyNotFound, electionID)
		}
		return nil, err
	}
	kf := &KeyFile{}
	if err := json.Unmarshal(data, kf); err != nil {
		return nil, fmt.Errorf("could not decode key file: %w", err)
	}
	return kf, nil
}

// Exists reports whether the keystore holds a key file for the election.
func (ks *KeyStore) Exists(electionID uint64) (bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, err := os.Stat(ks.Path(electionID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the key file of an election.
func (ks *KeyStore) Delete(electionID uint64) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if err := os.Remove(ks.Path(electionID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: election %d", ErrKeyNotFound, electionID)
		}
		return err
	}
	log.Infow("election key deleted", "electionId", electionID)
	return nil
}

// Seal encrypts the keypair with a key derived from password. The election,
// curve and public key are authenticated along with the private key.
func Seal(password string, electionID uint64, kp *elgamal.Keypair) (*KeyFile, error) {
	return seal([]byte(password), electionID, kp)
}

// Open reverses Seal.
func Open(password string, kf *KeyFile) (*elgamal.Keypair, error) {
	return open([]byte(password), kf)
}

func seal(password []byte, electionID uint64, kp *elgamal.Keypair) (*KeyFile, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %v", elgamal.ErrEntropyFailure, err)
	}
	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", elgamal.ErrEntropyFailure, err)
	}
	kf := &KeyFile{
		ElectionID: electionID,
		Curve:      kp.PublicKey.Curve(),
		PublicKey:  kp.PublicKey.Hex(),
		Nonce:      nonce,
		Salt:       salt,
		Algorithm:  Algorithm,
		CreatedAt:  time.Now().Unix(),
	}
	kf.EncryptedKey = aead.Seal(nil, nonce, kp.PrivateKey.Bytes(), kf.additionalData())
	return kf, nil
}

func open(password []byte, kf *KeyFile) (*elgamal.Keypair, error) {
	if kf.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrDecryptKey, kf.Algorithm)
	}
	aead, err := newAEAD(password, kf.Salt)
	if err != nil {
		return nil, err
	}
	if len(kf.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce size", ErrDecryptKey)
	}
	plain, err := aead.Open(nil, kf.Nonce, kf.EncryptedKey, kf.additionalData())
	if err != nil {
		return nil, ErrDecryptKey
	}
	defer clear(plain)
	return elgamal.ImportKeypair(elgamal.KeypairHex{
		Curve:      kf.Curve,
		PublicKey:  kf.PublicKey,
		PrivateKey: types.HexBytes(plain).Hex(),
	})
}

func newAEAD(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, cipherKeyLen)
	if err != nil {
		return nil, fmt.Errorf("could not derive cipher key: %w", err)
	}
	defer clear(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// additionalData binds the sealed key to its public metadata.
func (kf *KeyFile) additionalData() []byte {
	ad := binary.BigEndian.AppendUint64(nil, kf.ElectionID)
	ad = append(ad, kf.Curve...)
	return append(ad, kf.PublicKey...)
}
