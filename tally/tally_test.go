package tally

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/bn254"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/secp256k1"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
)

func encryptChoices(c *qt.C, pk *elgamal.PublicKey, electionID uint64, count int, choices ...int) []*ballot.EncryptedBallot {
	enc, err := ballot.NewEncryptor(pk, count)
	c.Assert(err, qt.IsNil)
	ballots := make([]*ballot.EncryptedBallot, 0, len(choices))
	for i, choice := range choices {
		b, err := enc.Encrypt(choice, ballot.Context{ElectionID: electionID, VoterNonce: []byte{byte(i >> 8), byte(i)}}, nil)
		c.Assert(err, qt.IsNil)
		ballots = append(ballots, b)
	}
	return ballots
}

func TestExampleScenario(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 3, 0, 1, 1, 2)

	res, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Results, qt.DeepEquals, []CandidateResult{
		{CandidateID: 0, Votes: 1},
		{CandidateID: 1, Votes: 2},
		{CandidateID: 2, Votes: 1},
	})
	c.Assert(res.TotalVotes, qt.Equals, uint64(4))
	c.Assert(res.FailedDecryptions, qt.Equals, uint64(0))
	c.Assert(res.SubmittedBallots, qt.Equals, uint64(4))
	c.Assert(res.Failures, qt.HasLen, 0)
}

func TestZeroVoteCandidatesAreListed(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(bn254.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 5, 4, 4)

	res, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts(), qt.DeepEquals, []uint64{0, 0, 0, 0, 2})
	c.Assert(res.Votes(4), qt.Equals, uint64(2))
	c.Assert(res.Votes(9), qt.Equals, uint64(0))

	// no ballots at all
	res, err = DecryptAndTally(context.Background(), kp.PrivateKey, nil, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts(), qt.DeepEquals, []uint64{0, 0})
	c.Assert(res.SubmittedBallots, qt.Equals, uint64(0))
}

func TestCorruptedBallots(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)

	const (
		n     = 250
		k     = 37
		count = 4
	)
	choices := make([]int, n)
	for i := range choices {
		choices[i] = i % count
	}
	ballots := encryptChoices(c, kp.PublicKey, 1, count, choices...)

	rng := rand.New(rand.NewPCG(1, 2))
	corrupted := make(map[int]bool)
	for len(corrupted) < k {
		i := rng.IntN(n)
		if corrupted[i] {
			continue
		}
		corrupted[i] = true
		ct := append([]byte(nil), ballots[i].Ciphertext...)
		pos := rng.IntN(len(ct))
		ct[pos] ^= byte(1 + rng.IntN(255))
		ballots[i].Ciphertext = ct
	}

	res, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, count, WithWorkers(8))
	c.Assert(err, qt.IsNil)
	c.Assert(res.TotalVotes, qt.Equals, uint64(n-k))
	c.Assert(res.FailedDecryptions, qt.Equals, uint64(k))
	c.Assert(res.SubmittedBallots, qt.Equals, uint64(n))

	var sum uint64
	for _, cr := range res.Results {
		sum += cr.Votes
	}
	c.Assert(sum, qt.Equals, uint64(n-k))

	// failures are reported in ballot order and point at the corrupted ballots
	c.Assert(res.Failures, qt.HasLen, k)
	for j, f := range res.Failures {
		c.Assert(corrupted[f.Index], qt.IsTrue)
		c.Assert(f.BallotID.Equal(ballots[f.Index].ID), qt.IsTrue)
		c.Assert(f.Error, qt.Not(qt.Equals), "")
		if j > 0 {
			c.Assert(f.Index > res.Failures[j-1].Index, qt.IsTrue)
		}
	}
}

func TestTallyIsIdempotent(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 3, 2, 0, 1, 1, 2, 2, 0)
	ballots[3].Ciphertext = ballots[3].Ciphertext[:20]

	first, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 3, WithWorkers(1))
	c.Assert(err, qt.IsNil)
	for _, workers := range []int{1, 2, 3, 16} {
		again, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 3, WithWorkers(workers))
		c.Assert(err, qt.IsNil)
		c.Assert(again.Results, qt.DeepEquals, first.Results)
		c.Assert(again.TotalVotes, qt.Equals, first.TotalVotes)
		c.Assert(again.Failures, qt.DeepEquals, first.Failures)
	}
	c.Assert(first.Counts(), qt.DeepEquals, []uint64{2, 1, 3})
}

func TestTallyWithWrongKey(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	wrong, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)

	choices := make([]int, 100)
	for i := range choices {
		choices[i] = i % 10
	}
	ballots := encryptChoices(c, kp.PublicKey, 1, 10, choices...)

	res, err := DecryptAndTally(context.Background(), wrong.PrivateKey, ballots, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(res.TotalVotes, qt.Equals, uint64(0))
	c.Assert(res.FailedDecryptions, qt.Equals, uint64(100))
}

func TestTallyInputErrors(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 2, 0, 1)

	_, err = DecryptAndTally(context.Background(), nil, ballots, 2)
	c.Assert(err, qt.ErrorIs, elgamal.ErrMalformedKey)

	_, err = DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 0)
	c.Assert(err, qt.ErrorIs, elgamal.ErrInvalidCandidateCount)

	// a ballot for another election, a bn254 ballot and a nil ballot are
	// reported, the rest is counted
	other, err := elgamal.GenerateKeypair(bn254.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots = append(ballots, encryptChoices(c, kp.PublicKey, 2, 2, 0)...)
	ballots = append(ballots, encryptChoices(c, other.PublicKey, 1, 2, 1)...)
	ballots = append(ballots, nil)

	res, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 2, WithElectionID(1))
	c.Assert(err, qt.IsNil)
	c.Assert(res.ElectionID, qt.Equals, uint64(1))
	c.Assert(res.TotalVotes, qt.Equals, uint64(2))
	c.Assert(res.FailedDecryptions, qt.Equals, uint64(3))
	c.Assert(res.Failures[0].Index, qt.Equals, 2)
	c.Assert(res.Failures[1].Index, qt.Equals, 3)
	c.Assert(res.Failures[2].Index, qt.Equals, 4)
}

func TestDecryptionErrorUnwrap(t *testing.T) {
	c := qt.New(t)

	err := error(&DecryptionError{Index: 3, BallotID: []byte{0xab}, Err: elgamal.ErrPlaintextOutOfRange})
	c.Assert(errors.Is(err, ErrDecryption), qt.IsTrue)
	c.Assert(errors.Is(err, elgamal.ErrPlaintextOutOfRange), qt.IsTrue)
	c.Assert(err.Error(), qt.Contains, "ballot 3 (ab)")
}

func TestTallyCancellation(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 2, 0, 1, 0, 1, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := DecryptAndTally(ctx, kp.PrivateKey, ballots, 2, WithWorkers(2))
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(res, qt.IsNil)
}

func TestTallyWithProofs(t *testing.T) {
	c := qt.New(t)

	kp, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	ballots := encryptChoices(c, kp.PublicKey, 1, 3, 0, 2, 2, 1)
	ballots[1].Ciphertext = ballots[1].Ciphertext[1:]

	res, err := DecryptAndTally(context.Background(), kp.PrivateKey, ballots, 3, WithDecryptionProofs())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Proofs, qt.HasLen, 3)
	c.Assert(VerifyResult(kp.PublicKey, ballots, res), qt.IsNil)

	// inflate a count
	res.Results[2].Votes++
	res.Results[0].Votes--
	c.Assert(VerifyResult(kp.PublicKey, ballots, res), qt.ErrorIs, ErrResultMismatch)
	res.Results[2].Votes--
	res.Results[0].Votes++

	// claim another choice for a proven ballot
	res.Proofs[0].Choice = 1
	c.Assert(VerifyResult(kp.PublicKey, ballots, res), qt.ErrorIs, ErrResultMismatch)
	res.Proofs[0].Choice = 0

	// another key cannot be used to check the proofs
	wrong, err := elgamal.GenerateKeypair(secp256k1.CurveType, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyResult(wrong.PublicKey, ballots, res), qt.ErrorIs, elgamal.ErrInvalidProof)

	// results without proofs cannot be checked
	res.Proofs = nil
	c.Assert(VerifyResult(kp.PublicKey, ballots, res), qt.ErrorIs, ErrResultMismatch)
}
