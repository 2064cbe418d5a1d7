package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/davinci-ballotbox/finalizer"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// FinalizerService runs the election finalizer: ended elections are tallied
// on every monitor tick and any election can be queued through Enqueue.
type FinalizerService struct {
	*finalizer.Finalizer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFinalizer creates the service. Ballots are read from stg and election
// keys from keys.
func NewFinalizer(stg *storage.Storage, keys finalizer.KeyLoader, opts finalizer.Options) *FinalizerService {
	return &FinalizerService{Finalizer: finalizer.New(stg, keys, opts)}
}

// Start launches the finalizer goroutines. With a zero interval ended
// elections are not polled and only queued elections are finalized.
func (fs *FinalizerService) Start(ctx context.Context, interval time.Duration) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, fs.cancel = context.WithCancel(ctx)
	fs.Finalizer.Start(ctx, interval)
	log.Infow("finalizer service started", "interval", interval.String())
	return nil
}

// Running reports whether the service has been started and not stopped.
func (fs *FinalizerService) Running() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cancel != nil
}

// Stop cancels the finalizer and waits for its goroutines, so the storage
// can be closed right after.
func (fs *FinalizerService) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.cancel == nil {
		return
	}
	fs.cancel()
	fs.cancel = nil
	fs.Close()
	log.Infow("finalizer service stopped")
}
