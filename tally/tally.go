// Package tally decrypts a batch of encrypted ballots with the election
// private key and counts the votes per candidate.
package tally

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"golang.org/x/sync/errgroup"
)

// progressInterval is the number of decrypted ballots between progress logs.
const progressInterval = 100

type options struct {
	workers    int
	electionID *uint64
	proofs     bool
	now        func() time.Time
}

// Option configures DecryptAndTally.
type Option func(*options)

// WithWorkers sets the number of decryption workers. Values below one fall
// back to the number of CPUs.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithElectionID makes ballots cast for any other election fail with
// ErrElectionMismatch, and sets Result.ElectionID.
func WithElectionID(id uint64) Option {
	return func(o *options) {
		o.electionID = &id
	}
}

// WithDecryptionProofs attaches a decryption proof for each counted ballot.
func WithDecryptionProofs() Option {
	return func(o *options) {
		o.proofs = true
	}
}

// outcome is the decryption of a single ballot.
type outcome struct {
	choice int
	proof  *BallotProof
	err    error
}

// partial holds the counts of one worker. Workers never share a partial, so
// no locking is needed until the merge.
type partial struct {
	counts []uint64
}

// DecryptAndTally decrypts every ballot with sk and counts the votes for
// candidates in [0, candidateCount). A ballot that does not decrypt to a
// valid candidate is excluded from the count and reported in
// Result.Failures; it never aborts the batch. Decryption runs on a pool of
// workers, and the result does not depend on the scheduling.
//
// Cancelling ctx stops the dispatch of the remaining ballots and returns
// ctx.Err().
func DecryptAndTally(ctx context.Context, sk *elgamal.PrivateKey, ballots []*ballot.EncryptedBallot,
	candidateCount int, opts ...Option,
) (*Result, error) {
	o := &options{
		workers: runtime.NumCPU(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if sk == nil || sk.Scalar().Sign() <= 0 {
		return nil, fmt.Errorf("%w: missing private key", elgamal.ErrMalformedKey)
	}
	table, err := elgamal.NewCandidateTable(sk.Curve(), candidateCount)
	if err != nil {
		return nil, err
	}

	workers := max(1, min(o.workers, len(ballots)))
	outcomes := make([]outcome, len(ballots))
	partials := make([]*partial, workers)
	indexes := make(chan int, 2*workers)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers + 1)
	g.Go(func() error {
		defer close(indexes)
		for i := range ballots {
			select {
			case indexes <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := range workers {
		p := &partial{counts: make([]uint64, candidateCount)}
		partials[w] = p
		g.Go(func() error {
			for i := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				out := decryptBallot(sk, table, i, ballots[i], o)
				if out.err == nil {
					p.counts[out.choice]++
				}
				outcomes[i] = out
				if n := done.Add(1); n%progressInterval == 0 {
					log.Debugw("tally progress", "processed", n, "total", len(ballots))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Results:          make([]CandidateResult, candidateCount),
		SubmittedBallots: uint64(len(ballots)),
		TalliedAt:        o.now().Unix(),
	}
	if o.electionID != nil {
		res.ElectionID = *o.electionID
	}
	for i := range res.Results {
		res.Results[i].CandidateID = i
	}
	for _, p := range partials {
		for i, n := range p.counts {
			res.Results[i].Votes += n
			res.TotalVotes += n
		}
	}
	// walk the outcomes in ballot order so failures and proofs are stable
	for i, out := range outcomes {
		if out.err != nil {
			var derr *DecryptionError
			errors.As(out.err, &derr)
			res.Failures = append(res.Failures, Failure{
				Index:    i,
				BallotID: derr.BallotID,
				Error:    derr.Err.Error(),
			})
			continue
		}
		if out.proof != nil {
			res.Proofs = append(res.Proofs, *out.proof)
		}
	}
	res.FailedDecryptions = uint64(len(res.Failures))

	log.Infow("tally finished",
		"electionId", res.ElectionID,
		"submitted", res.SubmittedBallots,
		"counted", res.TotalVotes,
		"failed", res.FailedDecryptions,
		"workers", workers)
	return res, nil
}

// decryptBallot decrypts one ballot. Every error it returns is a
// *DecryptionError.
func decryptBallot(sk *elgamal.PrivateKey, table *elgamal.CandidateTable, i int,
	b *ballot.EncryptedBallot, o *options,
) outcome {
	fail := func(err error) outcome {
		derr := &DecryptionError{Index: i, Err: err}
		if b != nil {
			derr.BallotID = b.ID
		}
		return outcome{err: derr}
	}
	if b == nil {
		return fail(ballot.ErrInvalidBallot)
	}
	if o.electionID != nil && b.ElectionID != *o.electionID {
		return fail(fmt.Errorf("%w: got %d, want %d", ErrElectionMismatch, b.ElectionID, *o.electionID))
	}
	if b.Curve != sk.Curve() {
		return fail(fmt.Errorf("%w: ballot curve %q, key curve %q", elgamal.ErrInvalidCurveType, b.Curve, sk.Curve()))
	}
	ct, err := b.ParseCiphertext()
	if err != nil {
		return fail(err)
	}
	m, err := elgamal.DecryptPoint(sk, ct)
	if err != nil {
		return fail(err)
	}
	choice, err := table.Decode(m)
	if err != nil {
		return fail(err)
	}
	out := outcome{choice: choice}
	if o.proofs {
		proof, err := elgamal.BuildDecryptionProof(sk, ct, m)
		if err != nil {
			return fail(err)
		}
		out.proof = &BallotProof{
			BallotID:  b.ID,
			Choice:    choice,
			Plaintext: m.Marshal(),
			Proof:     proof,
		}
	}
	return out
}

// VerifyResult checks a result produced WithDecryptionProofs against the
// ballots it was computed from, using only the public key. Every counted
// ballot needs a valid proof, and the per-candidate counts must match the
// proven choices.
func VerifyResult(pk *elgamal.PublicKey, ballots []*ballot.EncryptedBallot, res *Result) error {
	if pk == nil || res == nil {
		return fmt.Errorf("%w: missing public key or result", ErrResultMismatch)
	}
	if uint64(len(res.Proofs)) != res.TotalVotes {
		return fmt.Errorf("%w: %d proofs for %d votes", ErrResultMismatch, len(res.Proofs), res.TotalVotes)
	}
	if res.TotalVotes+res.FailedDecryptions != res.SubmittedBallots {
		return fmt.Errorf("%w: counted and failed ballots do not add up", ErrResultMismatch)
	}
	table, err := elgamal.NewCandidateTable(pk.Curve(), len(res.Results))
	if err != nil {
		return err
	}
	byID := make(map[string]*ballot.EncryptedBallot, len(ballots))
	for _, b := range ballots {
		if b != nil {
			byID[string(b.ID)] = b
		}
	}

	counts := make([]uint64, len(res.Results))
	seen := make(map[string]struct{}, len(res.Proofs))
	for _, bp := range res.Proofs {
		if _, dup := seen[string(bp.BallotID)]; dup {
			return fmt.Errorf("%w: ballot %s proven twice", ErrResultMismatch, bp.BallotID)
		}
		seen[string(bp.BallotID)] = struct{}{}
		b, ok := byID[string(bp.BallotID)]
		if !ok {
			return fmt.Errorf("%w: unknown ballot %s", ErrResultMismatch, bp.BallotID)
		}
		ct, err := b.ParseCiphertext()
		if err != nil {
			return fmt.Errorf("%w: ballot %s: %v", ErrResultMismatch, bp.BallotID, err)
		}
		m := pk.Point().New()
		if err := m.Unmarshal(bp.Plaintext); err != nil {
			return fmt.Errorf("%w: ballot %s plaintext: %v", ErrResultMismatch, bp.BallotID, err)
		}
		if err := elgamal.VerifyDecryptionProof(pk, ct, m, bp.Proof); err != nil {
			return fmt.Errorf("ballot %s: %w", bp.BallotID, err)
		}
		choice, err := table.Decode(m)
		if err != nil || choice != bp.Choice {
			return fmt.Errorf("%w: ballot %s does not decode to candidate %d", ErrResultMismatch, bp.BallotID, bp.Choice)
		}
		counts[choice]++
	}
	for i, cr := range res.Results {
		if cr.CandidateID != i || cr.Votes != counts[i] {
			return fmt.Errorf("%w: candidate %d has %d votes, proofs show %d", ErrResultMismatch, i, cr.Votes, counts[i])
		}
	}
	return nil
}
