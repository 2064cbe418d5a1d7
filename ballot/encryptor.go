package ballot

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/types"
)

// Context binds a ballot to an election and to a voter chosen nonce.
type Context struct {
	ElectionID uint64
	VoterNonce types.HexBytes
}

// Encryptor encrypts candidate choices under an election public key. Once
// configured it can be shared between goroutines.
type Encryptor struct {
	pk             *elgamal.PublicKey
	candidateCount int
	entropy        io.Reader
	now            func() time.Time
}

// NewEncryptor returns an encryptor for an election with candidateCount
// candidates.
func NewEncryptor(pk *elgamal.PublicKey, candidateCount int) (*Encryptor, error) {
	if pk == nil {
		return nil, fmt.Errorf("%w: nil public key", elgamal.ErrMalformedKey)
	}
	if candidateCount < 1 || candidateCount > elgamal.MaxCandidates {
		return nil, fmt.Errorf("%w: %d", elgamal.ErrInvalidCandidateCount, candidateCount)
	}
	return &Encryptor{
		pk:             pk,
		candidateCount: candidateCount,
		entropy:        rand.Reader,
		now:            time.Now,
	}, nil
}

// SetEntropy replaces the randomness source, crypto/rand by default. It
// must be called before the encryptor is shared.
func (e *Encryptor) SetEntropy(r io.Reader) {
	if r != nil {
		e.entropy = r
	}
}

// CandidateCount returns the number of candidates of the election.
func (e *Encryptor) CandidateCount() int {
	return e.candidateCount
}

// Encrypt builds an encrypted ballot for choice. The choice is checked before
// any curve operation. A nil proof is stored as NoProof.
func (e *Encryptor) Encrypt(choice int, ctx Context, proof Proof) (*EncryptedBallot, error) {
	if choice < 0 || choice >= e.candidateCount {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidChoice, choice, e.candidateCount)
	}
	if proof == nil {
		proof = NoProof{}
	}
	if err := proof.Validate(); err != nil {
		return nil, err
	}

	k, err := elgamal.RandK(e.pk, e.entropy)
	if err != nil {
		return nil, err
	}
	ct := elgamal.EncryptWithK(e.pk, elgamal.EncodeCandidate(e.pk.Curve(), choice), k)
	ciphertext := ct.Marshal()

	return &EncryptedBallot{
		ID:         BallotID(ctx.ElectionID, ctx.VoterNonce, ciphertext),
		ElectionID: ctx.ElectionID,
		Curve:      e.pk.Curve(),
		Ciphertext: ciphertext,
		Proof:      proof,
		Timestamp:  e.now().Unix(),
	}, nil
}

// Encrypt is a shorthand for NewEncryptor followed by Encryptor.Encrypt.
func Encrypt(pk *elgamal.PublicKey, candidateCount, choice int, ctx Context, proof Proof) (*EncryptedBallot, error) {
	e, err := NewEncryptor(pk, candidateCount)
	if err != nil {
		return nil, err
	}
	return e.Encrypt(choice, ctx, proof)
}
