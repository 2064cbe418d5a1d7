package finalizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/davinci-ballotbox/archive"
	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
	"github.com/vocdoni/davinci-ballotbox/tally"
)

var (
	// ErrKeyRevoked is returned when the election key was revoked.
	ErrKeyRevoked = errors.New("election key is revoked")
	// ErrKeyMismatch is returned when the stored private key does not
	// belong to the election public key.
	ErrKeyMismatch = errors.New("private key does not match the election public key")
	// ErrElectionNotClosed is returned when the election still accepts
	// ballots.
	ErrElectionNotClosed = errors.New("election is not closed yet")
)

const ondemandQueueSize = 10

// pollInterval is the WaitUntilFinalized polling period.
var pollInterval = 250 * time.Millisecond

// KeyLoader returns the keypair of an election. keystore.KeyStore
// implements it.
type KeyLoader interface {
	Load(electionID uint64) (*elgamal.Keypair, error)
}

// Options configures the finalizer.
type Options struct {
	// Workers is the number of tally workers, 0 for the tally default.
	Workers int
	// DecryptionProofs adds a decryption proof per ballot to the results.
	DecryptionProofs bool
	// Exporters receive the archive of every finalized election.
	Exporters []archive.Exporter
}

// Finalizer closes elections and tallies their ballots.
type Finalizer struct {
	stg        *storage.Storage
	keys       KeyLoader
	opts       Options
	OndemandCh chan uint64
	lock       sync.Mutex // one finalization at a time
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a new Finalizer instance.
func New(stg *storage.Storage, keys KeyLoader, opts Options) *Finalizer {
	return &Finalizer{
		stg:        stg,
		keys:       keys,
		opts:       opts,
		OndemandCh: make(chan uint64, ondemandQueueSize),
	}
}

// Start starts the finalizer. It finalizes the elections received on
// OndemandCh and, if monitorInterval is not zero, periodically finalizes
// the elections whose end time has passed.
func (f *Finalizer) Start(ctx context.Context, monitorInterval time.Duration) {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case electionID := <-f.OndemandCh:
				if _, err := f.Finalize(f.ctx, electionID); err != nil {
					log.Errorw(err, fmt.Sprintf("finalizing election %d", electionID))
				}
			case <-f.ctx.Done():
				return
			}
		}
	}()

	if monitorInterval > 0 {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			ticker := time.NewTicker(monitorInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					f.finalizeByDate(time.Now())
				case <-f.ctx.Done():
					return
				}
			}
		}()
	}

	log.Infow("finalizer started", "monitorInterval", monitorInterval.String())
}

// Close stops the finalizer and waits for its goroutines to exit. It must
// be called before closing the storage.
func (f *Finalizer) Close() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Infow("finalizer closed")
	case <-time.After(5 * time.Second):
		log.Warnw("some finalizer goroutines did not exit cleanly")
	}
}

// Enqueue schedules the finalization of an election. It returns false if
// the finalizer is not running or the queue is full.
func (f *Finalizer) Enqueue(electionID uint64) bool {
	if f.ctx == nil || f.ctx.Err() != nil {
		return false
	}
	select {
	case f.OndemandCh <- electionID:
		return true
	default:
		return false
	}
}

// finalizeByDate closes the open elections whose end time is before date
// and queues every closed election for finalization, except those with a
// revoked key. It never blocks on a full queue.
func (f *Finalizer) finalizeByDate(date time.Time) {
	ids, err := f.stg.ListElections()
	if err != nil {
		log.Errorw(err, "could not list elections")
		return
	}
	for _, id := range ids {
		e, err := f.stg.Election(id)
		if err != nil {
			log.Errorw(err, fmt.Sprintf("could not retrieve election %d", id))
			continue
		}
		switch {
		case e.Status == storage.ElectionStatusOpen && e.Ended(date):
			if err := f.stg.UpdateElectionStatus(id, storage.ElectionStatusClosed); err != nil {
				log.Errorw(err, fmt.Sprintf("could not close election %d", id))
				continue
			}
		case e.Status == storage.ElectionStatusClosed:
		default:
			continue
		}
		if km, err := f.stg.KeyMetadata(id); err == nil && km.Status == storage.KeyStatusRevoked {
			continue
		}
		select {
		case f.OndemandCh <- id:
			log.Debugw("found election to finalize by date", "electionId", id)
		default:
			log.Debugw("finalize queue is full, retrying on the next tick", "electionId", id)
			return
		}
	}
}

// Finalize tallies an election that no longer accepts ballots: an open
// election whose end time has passed is closed first, one that is still
// running returns ErrElectionNotClosed. The ballots are decrypted and
// counted, the result stored and the key marked as used. Finalizing a
// tallied election runs the tally again and overwrites the stored result
// with an identical one.
func (f *Finalizer) Finalize(ctx context.Context, electionID uint64) (*tally.Result, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	log.Debugw("finalizing election", "electionId", electionID)
	e, err := f.stg.Election(electionID)
	if err != nil {
		return nil, err
	}
	if e.AcceptsBallots(time.Now()) {
		return nil, fmt.Errorf("%w: election %d", ErrElectionNotClosed, electionID)
	}
	if e.Status == storage.ElectionStatusOpen {
		if err := f.stg.UpdateElectionStatus(electionID, storage.ElectionStatusClosed); err != nil {
			return nil, fmt.Errorf("could not close election %d: %w", electionID, err)
		}
	}

	km, err := f.stg.KeyMetadata(electionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		km = nil
	case err != nil:
		return nil, err
	case km.Status == storage.KeyStatusRevoked:
		return nil, fmt.Errorf("%w: election %d", ErrKeyRevoked, electionID)
	}

	kp, err := f.keys.Load(electionID)
	if err != nil {
		return nil, fmt.Errorf("could not load the key of election %d: %w", electionID, err)
	}
	defer kp.PrivateKey.Zero()
	pk, err := e.ParsePublicKey()
	if err != nil {
		return nil, err
	}
	if !kp.PublicKey.Equal(pk) {
		return nil, fmt.Errorf("%w: election %d", ErrKeyMismatch, electionID)
	}

	ballots, err := f.stg.Ballots(electionID)
	if err != nil {
		return nil, fmt.Errorf("could not load ballots of election %d: %w", electionID, err)
	}

	startTime := time.Now()
	opts := []tally.Option{tally.WithElectionID(electionID)}
	if f.opts.Workers > 0 {
		opts = append(opts, tally.WithWorkers(f.opts.Workers))
	}
	if f.opts.DecryptionProofs {
		opts = append(opts, tally.WithDecryptionProofs())
	}
	res, err := tally.DecryptAndTally(ctx, kp.PrivateKey, ballots, e.CandidateCount, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not tally election %d: %w", electionID, err)
	}

	if err := f.stg.SetResults(res); err != nil {
		return nil, fmt.Errorf("could not store results of election %d: %w", electionID, err)
	}
	if km != nil {
		if err := f.stg.MarkKeyUsed(electionID); err != nil {
			log.Warnw("could not mark key as used", "electionId", electionID, "error", err.Error())
		}
	}
	log.Infow("finalized election", "electionId", electionID, "ballots", len(ballots),
		"totalVotes", res.TotalVotes, "failed", res.FailedDecryptions,
		"duration", time.Since(startTime).String())

	f.export(ctx, e, ballots, res)
	return res, nil
}

// export publishes the election archive. Failures are logged, the results
// are already stored.
func (f *Finalizer) export(ctx context.Context, e *storage.Election, ballots []*ballot.EncryptedBallot, res *tally.Result) {
	if len(f.opts.Exporters) == 0 {
		return
	}
	if updated, err := f.stg.Election(e.ID); err == nil {
		e = updated
	}
	a, err := archive.Build(e, ballots, res)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("could not build archive of election %d", e.ID))
		return
	}
	for _, exp := range f.opts.Exporters {
		location, err := exp.Export(ctx, a)
		if err != nil {
			log.Errorw(err, fmt.Sprintf("could not export archive of election %d", e.ID))
			continue
		}
		log.Infow("election archive published", "electionId", e.ID, "cid", a.CID.String(), "location", location)
	}
}

// WaitUntilFinalized waits until the election has results and returns them.
// Without a deadline in ctx it gives up after 60 seconds.
func (f *Finalizer) WaitUntilFinalized(ctx context.Context, electionID uint64) (*tally.Result, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}
	var stopped <-chan struct{}
	if f.ctx != nil {
		stopped = f.ctx.Done()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Debugw("waiting for election to be finalized", "electionId", electionID)
	for {
		res, err := f.stg.Results(electionID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("could not retrieve results of election %d: %w", electionID, err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for election %d to be finalized: %w", electionID, ctx.Err())
		case <-stopped:
			return nil, fmt.Errorf("finalizer is shutting down while waiting for election %d", electionID)
		}
	}
}
